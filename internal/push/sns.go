package push

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
)

// SNSGateway delivers notifications through Amazon SNS platform endpoints.
// Endpoint ARNs are created per token on first use and cached in memory;
// the provider deduplicates endpoints by token on its side.
type SNSGateway struct {
	client             *sns.Client
	platformARNAndroid string
	platformARNIOS     string

	mu        sync.Mutex
	endpoints map[string]string // token -> endpoint ARN
}

func NewSNSGateway(ctx context.Context, region, platformARNAndroid, platformARNIOS string) (*SNSGateway, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSGateway{
		client:             sns.NewFromConfig(cfg),
		platformARNAndroid: platformARNAndroid,
		platformARNIOS:     platformARNIOS,
		endpoints:          make(map[string]string),
	}, nil
}

func (g *SNSGateway) Name() string { return "sns" }

func (g *SNSGateway) Send(n Notification) Result {
	ctx := context.Background()

	arn, err := g.endpointFor(ctx, n)
	if err != nil {
		return failureResult(n.DeviceToken, err)
	}

	message, err := buildMessage(n)
	if err != nil {
		return Result{DeviceToken: n.DeviceToken, Status: StatusFailed, ErrorMessage: err.Error()}
	}

	out, err := g.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(arn),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		g.forget(n.DeviceToken, err)
		return failureResult(n.DeviceToken, err)
	}

	return Result{
		DeviceToken: n.DeviceToken,
		Success:     true,
		Status:      StatusSent,
		MessageID:   aws.ToString(out.MessageId),
	}
}

func (g *SNSGateway) endpointFor(ctx context.Context, n Notification) (string, error) {
	g.mu.Lock()
	arn, ok := g.endpoints[n.DeviceToken]
	g.mu.Unlock()
	if ok {
		return arn, nil
	}

	platformARN := g.platformARNAndroid
	if n.Platform == "ios" {
		platformARN = g.platformARNIOS
	}

	out, err := g.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(platformARN),
		Token:                  aws.String(n.DeviceToken),
	})
	if err != nil {
		return "", err
	}

	arn = aws.ToString(out.EndpointArn)
	g.mu.Lock()
	g.endpoints[n.DeviceToken] = arn
	g.mu.Unlock()
	return arn, nil
}

// forget drops a cached endpoint when the provider reports it disabled so a
// re-registered token gets a fresh endpoint next time.
func (g *SNSGateway) forget(token string, err error) {
	if Classify(errorCode(err)) != FailureInvalidToken {
		return
	}
	g.mu.Lock()
	delete(g.endpoints, token)
	g.mu.Unlock()
	log.Printf("[push] dropped disabled endpoint for token ...%s", tail(token))
}

// buildMessage wraps title/body/data in the per-platform JSON structure SNS
// expects when MessageStructure is "json".
func buildMessage(n Notification) (string, error) {
	inner, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": n.Title, "body": n.Body},
		"data":         n.Data,
	})
	if err != nil {
		return "", err
	}
	aps, err := json.Marshal(map[string]interface{}{
		"aps":  map[string]interface{}{"alert": map[string]string{"title": n.Title, "body": n.Body}},
		"data": n.Data,
	})
	if err != nil {
		return "", err
	}
	wrapper, err := json.Marshal(map[string]string{
		"default": n.Body,
		"GCM":     string(inner),
		"APNS":    string(aps),
	})
	if err != nil {
		return "", err
	}
	return string(wrapper), nil
}

func failureResult(token string, err error) Result {
	code := errorCode(err)
	status := StatusFailed
	if Classify(code) == FailureInvalidToken {
		status = StatusInvalidToken
	}
	msg := code
	if msg == "" {
		msg = err.Error()
	}
	return Result{DeviceToken: token, Status: status, ErrorMessage: msg}
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func tail(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
