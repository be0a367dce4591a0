package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fieldsight/maintkit/internal/awsx"
)

// sessionTTLAttribute is the item attribute DynamoDB expires sessions on.
// The session-manager Lambda writes it as an epoch-seconds timestamp.
const sessionTTLAttribute = "expiresAt"

// EnsureSessionTable creates the DynamoDB session table if it does not
// exist: on-demand billing, sessionId partition key, TTL on expiresAt.
func (p *Provisioner) EnsureSessionTable(ctx context.Context) error {
	table := p.cfg.SessionTable
	if table == "" {
		return fmt.Errorf("session table name not configured")
	}

	_, err := p.aws.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err == nil {
		p.log.Info().Str("table", table).Msg("session table exists")
		return p.ensureSessionTTL(ctx, table)
	}
	if !awsx.IsNotFound(err) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	p.log.Info().Str("table", table).Msg("creating session table")
	_, err = p.aws.DynamoDB.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: dynamodbtypes.BillingModePayPerRequest,
		AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
			{AttributeName: aws.String("sessionId"), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{AttributeName: aws.String("sessionId"), KeyType: dynamodbtypes.KeyTypeHash},
		},
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	err = waitFor(ctx, "session table "+table, tablePollInterval, tablePollTimeout,
		func(ctx context.Context) (bool, error) {
			out, err := p.aws.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(table),
			})
			if err != nil {
				return false, err
			}
			return out.Table.TableStatus == dynamodbtypes.TableStatusActive, nil
		})
	if err != nil {
		return err
	}
	return p.ensureSessionTTL(ctx, table)
}

func (p *Provisioner) ensureSessionTTL(ctx context.Context, table string) error {
	out, err := p.aws.DynamoDB.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return fmt.Errorf("describe ttl for %s: %w", table, err)
	}

	var status dynamodbtypes.TimeToLiveStatus
	if out.TimeToLiveDescription != nil {
		status = out.TimeToLiveDescription.TimeToLiveStatus
	}
	if status == dynamodbtypes.TimeToLiveStatusEnabled || status == dynamodbtypes.TimeToLiveStatusEnabling {
		return nil
	}

	_, err = p.aws.DynamoDB.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &dynamodbtypes.TimeToLiveSpecification{
			AttributeName: aws.String(sessionTTLAttribute),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("enable ttl on %s: %w", table, err)
	}
	p.log.Info().Str("table", table).Str("attribute", sessionTTLAttribute).Msg("ttl enabled")
	return nil
}

// DeleteSessionTable removes the session table. A missing table is not
// an error so cleanup stays re-runnable.
func (p *Provisioner) DeleteSessionTable(ctx context.Context) error {
	table := p.cfg.SessionTable
	if table == "" {
		return nil
	}

	_, err := p.aws.DynamoDB.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete table %s: %w", table, err)
	}
	p.log.Info().Str("table", table).Msg("session table deleted")
	return nil
}
