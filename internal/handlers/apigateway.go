package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// APIGatewayHandler is the signature lambda.Start expects for REST API proxy
// integrations.
type APIGatewayHandler func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// APIGateway adapts h to API Gateway proxy events. Failures are always
// reported in the response, never as a returned error.
func APIGateway(h HandlerFunc) APIGatewayHandler {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		body := event.Body
		if event.IsBase64Encoded && body != "" {
			decoded, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				return toProxyResponse(errorResponse(http.StatusBadRequest, "Invalid JSON in request body", err.Error())), nil
			}
			body = string(decoded)
		}

		req := Request{
			Body: body,
			ID:   event.PathParameters["id"],
			Query: Query{
				Status: event.QueryStringParameters["status"],
				Limit:  event.QueryStringParameters["limit"],
				Offset: event.QueryStringParameters["offset"],
			},
			RequestID: event.RequestContext.RequestID,
		}

		return toProxyResponse(h(ctx, req)), nil
	}
}

func toProxyResponse(resp Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}
