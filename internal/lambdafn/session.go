package lambdafn

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/logging"
)

// sessionTTL is how long a session record lives before the table's TTL
// expires it.
const sessionTTL = 7 * 24 * time.Hour

// Session is one stored conversation session.
type Session struct {
	SessionID    string `dynamodbav:"sessionId" json:"sessionId"`
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
	LastActiveAt string `dynamodbav:"lastActiveAt" json:"lastActiveAt"`
	QueryCount   int    `dynamodbav:"queryCount" json:"queryCount"`
	ExpiresAt    int64  `dynamodbav:"expiresAt" json:"-"`
}

// sessionStore is the slice of the DynamoDB API the handler uses.
type sessionStore interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionHandler manages conversation sessions in DynamoDB.
type SessionHandler struct {
	store sessionStore
	table string
	now   func() time.Time
	log   *logging.Logger
}

// NewSessionHandler wires the handler from the Lambda environment
// (SESSION_TABLE).
func NewSessionHandler(ctx context.Context) (*SessionHandler, error) {
	log := logging.NewForLambda()
	table := os.Getenv("SESSION_TABLE")
	if table == "" {
		return nil, fmt.Errorf("SESSION_TABLE not set")
	}

	clients, err := awsx.New(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, err
	}
	return &SessionHandler{
		store: clients.DynamoDB,
		table: table,
		now:   time.Now,
		log:   log.Sub("session_manager"),
	}, nil
}

// Handle routes by method: POST creates, GET fetches, DELETE removes.
func (h *SessionHandler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	headers := openHeaders("GET, POST, DELETE, OPTIONS")

	switch method(event) {
	case http.MethodOptions:
		return preflight(headers), nil
	case http.MethodPost:
		return h.create(ctx, headers), nil
	case http.MethodGet:
		return h.fetch(ctx, event, headers), nil
	case http.MethodDelete:
		return h.remove(ctx, event, headers), nil
	default:
		return respondError(http.StatusMethodNotAllowed, headers, "Method not allowed", ""), nil
	}
}

func (h *SessionHandler) create(ctx context.Context, headers map[string]string) events.LambdaFunctionURLResponse {
	now := h.now().UTC()
	sess := Session{
		SessionID:    assistant.NewSessionID(),
		CreatedAt:    now.Format(time.RFC3339),
		LastActiveAt: now.Format(time.RFC3339),
		ExpiresAt:    now.Add(sessionTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return h.fail(headers, fmt.Errorf("marshal session: %w", err))
	}
	if _, err := h.store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(h.table),
		Item:      item,
	}); err != nil {
		return h.fail(headers, fmt.Errorf("store session: %w", err))
	}

	h.log.Info().Str("session_id", sess.SessionID).Msg("session created")
	return respond(http.StatusCreated, headers, sess)
}

func (h *SessionHandler) fetch(ctx context.Context, event events.LambdaFunctionURLRequest, headers map[string]string) events.LambdaFunctionURLResponse {
	id := event.QueryStringParameters["sessionId"]
	if id == "" {
		return respondError(http.StatusBadRequest, headers,
			"Missing sessionId parameter", "Pass ?sessionId=<id>")
	}

	out, err := h.store.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(h.table),
		Key:       sessionKey(id),
	})
	if err != nil {
		return h.fail(headers, fmt.Errorf("load session: %w", err))
	}
	if len(out.Item) == 0 {
		return respondError(http.StatusNotFound, headers, "Session not found", "")
	}

	var sess Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return h.fail(headers, fmt.Errorf("unmarshal session: %w", err))
	}
	return respond(http.StatusOK, headers, sess)
}

func (h *SessionHandler) remove(ctx context.Context, event events.LambdaFunctionURLRequest, headers map[string]string) events.LambdaFunctionURLResponse {
	id := event.QueryStringParameters["sessionId"]
	if id == "" {
		return respondError(http.StatusBadRequest, headers,
			"Missing sessionId parameter", "Pass ?sessionId=<id>")
	}

	if _, err := h.store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(h.table),
		Key:       sessionKey(id),
	}); err != nil {
		return h.fail(headers, fmt.Errorf("delete session: %w", err))
	}

	h.log.Info().Str("session_id", id).Msg("session deleted")
	return respond(http.StatusOK, headers, map[string]string{"message": "Session deleted"})
}

func (h *SessionHandler) fail(headers map[string]string, err error) events.LambdaFunctionURLResponse {
	h.log.Error().Err(err).Msg("session operation failed")
	return respondError(http.StatusInternalServerError, headers, "Internal server error", "")
}

func sessionKey(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"sessionId": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}
