// The health-check Lambda reports the state of the agent, knowledge
// base, and data bucket as one healthy/degraded verdict.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fieldsight/maintkit/internal/lambdafn"
	"github.com/fieldsight/maintkit/internal/logging"
)

func main() {
	h, err := lambdafn.NewHealthHandler(context.Background())
	if err != nil {
		logging.NewForLambda().Fatal().Err(err).Msg("health handler init failed")
	}
	lambda.Start(h.Handle)
}
