// The data-sync Lambda starts knowledge base ingestion jobs and
// reports their progress.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fieldsight/maintkit/internal/lambdafn"
	"github.com/fieldsight/maintkit/internal/logging"
)

func main() {
	h, err := lambdafn.NewDataSyncHandler(context.Background())
	if err != nil {
		logging.NewForLambda().Fatal().Err(err).Msg("data sync handler init failed")
	}
	lambda.Start(h.Handle)
}
