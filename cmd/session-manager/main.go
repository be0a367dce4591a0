// The session-manager Lambda creates, fetches, and deletes chat
// sessions in the DynamoDB session table.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fieldsight/maintkit/internal/lambdafn"
	"github.com/fieldsight/maintkit/internal/logging"
)

func main() {
	h, err := lambdafn.NewSessionHandler(context.Background())
	if err != nil {
		logging.NewForLambda().Fatal().Err(err).Msg("session handler init failed")
	}
	lambda.Start(h.Handle)
}
