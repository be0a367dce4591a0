package provision

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
)

const (
	functionPollInterval = 2 * time.Second
	functionPollTimeout  = 2 * time.Minute
)

const functionURLStatementID = "AllowPublicFunctionUrlAccess"

// PackageBinary zips a built handler binary as "bootstrap" for the
// provided.al2023 runtime.
func PackageBinary(binaryPath string) ([]byte, error) {
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("reading handler binary: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: "bootstrap", Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("creating zip entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("writing zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing zip: %w", err)
	}
	return buf.Bytes(), nil
}

// DeployFunction creates or updates one Lambda function from a zipped
// bootstrap binary and returns the function ARN. Configuration comes
// from the registry entry under key.
func (p *Provisioner) DeployFunction(ctx context.Context, key string, zipData []byte, roleARN string) (string, error) {
	fn, ok := p.cfg.Function(key)
	if !ok {
		return "", fmt.Errorf("no function %q in the registry", key)
	}
	name := fn.FunctionName

	existing, err := p.aws.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	switch {
	case err == nil:
		arn := aws.ToString(existing.Configuration.FunctionArn)
		if err := p.updateFunction(ctx, name, fn, zipData, roleARN); err != nil {
			return "", err
		}
		p.log.Info().Str("function", name).Msg("updated function")
		return arn, nil
	case awsx.IsNotFound(err):
		arn, err := p.createFunction(ctx, name, fn, zipData, roleARN)
		if err != nil {
			return "", err
		}
		p.log.Info().Str("function", name).Str("arn", arn).Msg("created function")
		return arn, nil
	default:
		return "", fmt.Errorf("getting function %s: %w", name, err)
	}
}

func (p *Provisioner) createFunction(ctx context.Context, name string, fn config.LambdaFunctionConfig, zipData []byte, roleARN string) (string, error) {
	out, err := p.aws.Lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName:  aws.String(name),
		Description:   aws.String(fn.Description),
		Runtime:       lambdatypes.Runtime(fn.Runtime),
		Handler:       aws.String(fn.Handler),
		Role:          aws.String(roleARN),
		Code:          &lambdatypes.FunctionCode{ZipFile: zipData},
		Timeout:       aws.Int32(fn.Timeout),
		MemorySize:    aws.Int32(fn.MemorySize),
		Architectures: []lambdatypes.Architecture{lambdatypes.ArchitectureArm64},
		Environment:   &lambdatypes.Environment{Variables: fn.EnvironmentVariables},
		Tags:          map[string]string{"Project": p.cfg.ProjectName},
	})
	if err != nil {
		return "", fmt.Errorf("creating function %s: %w", name, err)
	}
	if err := p.waitFunctionReady(ctx, name); err != nil {
		return "", err
	}
	return aws.ToString(out.FunctionArn), nil
}

func (p *Provisioner) updateFunction(ctx context.Context, name string, fn config.LambdaFunctionConfig, zipData []byte, roleARN string) error {
	_, err := p.aws.Lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      zipData,
	})
	if err != nil {
		return fmt.Errorf("updating function code for %s: %w", name, err)
	}
	// Code and configuration updates conflict while the first is still
	// rolling out.
	if err := p.waitFunctionReady(ctx, name); err != nil {
		return err
	}

	_, err = p.aws.Lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(name),
		Description:  aws.String(fn.Description),
		Runtime:      lambdatypes.Runtime(fn.Runtime),
		Handler:      aws.String(fn.Handler),
		Role:         aws.String(roleARN),
		Timeout:      aws.Int32(fn.Timeout),
		MemorySize:   aws.Int32(fn.MemorySize),
		Environment:  &lambdatypes.Environment{Variables: fn.EnvironmentVariables},
	})
	if err != nil {
		return fmt.Errorf("updating function configuration for %s: %w", name, err)
	}
	return p.waitFunctionReady(ctx, name)
}

// waitFunctionReady polls until the function is Active with no update
// in flight.
func (p *Provisioner) waitFunctionReady(ctx context.Context, name string) error {
	return waitFor(ctx, "function "+name, functionPollInterval, functionPollTimeout, func(ctx context.Context) (bool, error) {
		out, err := p.aws.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{
			FunctionName: aws.String(name),
		})
		if err != nil {
			return false, fmt.Errorf("getting function %s: %w", name, err)
		}
		cfg := out.Configuration
		if cfg.State == lambdatypes.StateFailed {
			return false, fmt.Errorf("function %s entered Failed state: %s", name, aws.ToString(cfg.StateReason))
		}
		if cfg.LastUpdateStatus == lambdatypes.LastUpdateStatusFailed {
			return false, fmt.Errorf("function %s update failed: %s", name, aws.ToString(cfg.LastUpdateStatusReason))
		}
		ready := cfg.State == lambdatypes.StateActive &&
			cfg.LastUpdateStatus != lambdatypes.LastUpdateStatusInProgress
		return ready, nil
	})
}

// EnsureFunctionURL creates or refreshes the Function URL for the
// registry entry under key and returns the URL, which is also written
// back to the registry. Public URLs get the resource policy that allows
// unauthenticated invocation.
func (p *Provisioner) EnsureFunctionURL(ctx context.Context, key string) (string, error) {
	fn, ok := p.cfg.Function(key)
	if !ok {
		return "", fmt.Errorf("no function %q in the registry", key)
	}
	if fn.FunctionURL == nil {
		return "", fmt.Errorf("function %q has no function_url configuration", key)
	}
	name := fn.FunctionName
	authType := lambdatypes.FunctionUrlAuthType(fn.FunctionURL.AuthType)
	cors := corsFromConfig(fn.FunctionURL.CORS)

	var url string
	_, err := p.aws.Lambda.GetFunctionUrlConfig(ctx, &lambda.GetFunctionUrlConfigInput{
		FunctionName: aws.String(name),
	})
	switch {
	case err == nil:
		updated, err := p.aws.Lambda.UpdateFunctionUrlConfig(ctx, &lambda.UpdateFunctionUrlConfigInput{
			FunctionName: aws.String(name),
			AuthType:     authType,
			Cors:         cors,
		})
		if err != nil {
			return "", fmt.Errorf("updating function URL for %s: %w", name, err)
		}
		url = aws.ToString(updated.FunctionUrl)
		p.log.Info().Str("function", name).Str("url", url).Msg("refreshed function URL")
	case awsx.IsNotFound(err):
		created, err := p.aws.Lambda.CreateFunctionUrlConfig(ctx, &lambda.CreateFunctionUrlConfigInput{
			FunctionName: aws.String(name),
			AuthType:     authType,
			Cors:         cors,
		})
		if err != nil {
			return "", fmt.Errorf("creating function URL for %s: %w", name, err)
		}
		url = aws.ToString(created.FunctionUrl)
		p.log.Info().Str("function", name).Str("url", url).Msg("created function URL")
	default:
		return "", fmt.Errorf("getting function URL for %s: %w", name, err)
	}

	if authType == lambdatypes.FunctionUrlAuthTypeNone {
		_, err := p.aws.Lambda.AddPermission(ctx, &lambda.AddPermissionInput{
			FunctionName:        aws.String(name),
			StatementId:         aws.String(functionURLStatementID),
			Action:              aws.String("lambda:InvokeFunctionUrl"),
			Principal:           aws.String("*"),
			FunctionUrlAuthType: lambdatypes.FunctionUrlAuthTypeNone,
		})
		if err != nil && !awsx.IsConflict(err) {
			return "", fmt.Errorf("adding function URL permission for %s: %w", name, err)
		}
	}

	entry := p.cfg.LambdaFunctions[key]
	entry.URL = url
	p.cfg.LambdaFunctions[key] = entry
	return url, nil
}

// FunctionURL returns the live Function URL for the registry entry
// under key, or "" when none is configured on the function.
func (p *Provisioner) FunctionURL(ctx context.Context, key string) (string, error) {
	fn, ok := p.cfg.Function(key)
	if !ok {
		return "", fmt.Errorf("no function %q in the registry", key)
	}
	out, err := p.aws.Lambda.GetFunctionUrlConfig(ctx, &lambda.GetFunctionUrlConfigInput{
		FunctionName: aws.String(fn.FunctionName),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("getting function URL for %s: %w", fn.FunctionName, err)
	}
	return aws.ToString(out.FunctionUrl), nil
}

func corsFromConfig(c config.CORSConfig) *lambdatypes.Cors {
	return &lambdatypes.Cors{
		AllowCredentials: aws.Bool(c.AllowCredentials),
		AllowHeaders:     c.AllowHeaders,
		AllowMethods:     c.AllowMethods,
		AllowOrigins:     c.AllowOrigins,
		MaxAge:           aws.Int32(c.MaxAge),
	}
}

// InvokeResult carries a direct Lambda invocation's outcome.
type InvokeResult struct {
	StatusCode    int32
	Payload       []byte
	FunctionError string
}

// InvokeFunction calls the function synchronously through the Lambda
// API with a raw JSON payload.
func (p *Provisioner) InvokeFunction(ctx context.Context, key string, payload []byte) (*InvokeResult, error) {
	fn, ok := p.cfg.Function(key)
	if !ok {
		return nil, fmt.Errorf("no function %q in the registry", key)
	}
	out, err := p.aws.Lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(fn.FunctionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking function %s: %w", fn.FunctionName, err)
	}
	return &InvokeResult{
		StatusCode:    out.StatusCode,
		Payload:       out.Payload,
		FunctionError: aws.ToString(out.FunctionError),
	}, nil
}

// LogLine is one CloudWatch log event.
type LogLine struct {
	Timestamp time.Time
	Message   string
}

// FunctionLogs fetches recent log events for the function's log group,
// newest last. startTime bounds how far back to look; limit caps the
// event count.
func (p *Provisioner) FunctionLogs(ctx context.Context, key string, startTime time.Time, limit int32) ([]LogLine, error) {
	fn, ok := p.cfg.Function(key)
	if !ok {
		return nil, fmt.Errorf("no function %q in the registry", key)
	}
	group := "/aws/lambda/" + fn.FunctionName

	var lines []LogLine
	var token *string
	for {
		out, err := p.aws.Logs.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(group),
			StartTime:    aws.Int64(startTime.UnixMilli()),
			Limit:        aws.Int32(limit),
			NextToken:    token,
		})
		if err != nil {
			if awsx.IsNotFound(err) {
				return nil, fmt.Errorf("log group %s not found (has the function run yet?)", group)
			}
			return nil, fmt.Errorf("reading logs for %s: %w", fn.FunctionName, err)
		}
		for _, ev := range out.Events {
			lines = append(lines, LogLine{
				Timestamp: time.UnixMilli(aws.ToInt64(ev.Timestamp)),
				Message:   aws.ToString(ev.Message),
			})
		}
		if out.NextToken == nil || int32(len(lines)) >= limit {
			break
		}
		token = out.NextToken
	}
	return lines, nil
}
