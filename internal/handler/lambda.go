package handler

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// HandleLambda is the API Gateway proxy entry point. The event is not inspected
// beyond picking a request id for logs. Failures are returned as a response,
// not as an error, so API Gateway relays the JSON body instead of a bare 502.
func (h *CounterHandler) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.RequestID
	if id == "" {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			id = lc.AwsRequestID
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	res := h.Invoke(ctx, id)

	return events.APIGatewayProxyResponse{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
	}, nil
}
