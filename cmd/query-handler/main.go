// The query-handler Lambda answers maintenance questions by invoking
// the Bedrock agent. It fronts the Function URL the web console and
// smoke tests talk to.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fieldsight/maintkit/internal/lambdafn"
	"github.com/fieldsight/maintkit/internal/logging"
)

func main() {
	h, err := lambdafn.NewQueryHandler(context.Background())
	if err != nil {
		logging.NewForLambda().Fatal().Err(err).Msg("query handler init failed")
	}
	lambda.Start(h.Handle)
}
