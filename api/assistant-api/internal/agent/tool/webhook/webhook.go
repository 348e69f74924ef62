// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_webhook_tool executes custom functions against
// their configured webhooks: method/header handling, per-attempt
// timeouts, linear-backoff retries and response mapping. The caller is
// stateless; every invocation reads its behaviour off the function row.
package internal_agent_webhook_tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
)

// DefaultTimeoutSeconds applies when a function row carries no timeout.
const DefaultTimeoutSeconds = 30

// errorSnippetLength caps how much webhook body lands in error strings.
const errorSnippetLength = 200

type Caller interface {
	// Call runs the webhook until it succeeds or retries are exhausted
	// and returns the decoded (and mapped) response object.
	Call(ctx context.Context, function *internal_entity.CustomFunction, arguments map[string]interface{}, callContext map[string]interface{}) (map[string]interface{}, error)
}

type webhookCaller struct {
	logger commons.Logger
}

func NewWebhookCaller(logger commons.Logger) Caller {
	return &webhookCaller{logger: logger}
}

func (c *webhookCaller) Call(
	ctx context.Context,
	function *internal_entity.CustomFunction,
	arguments map[string]interface{},
	callContext map[string]interface{},
) (map[string]interface{}, error) {
	if function.WebhookUrl == "" {
		return nil, errors.New("No webhook URL configured")
	}

	method := strings.ToUpper(strings.TrimSpace(function.HttpMethod))
	if method == "" {
		method = http.MethodPost
	}
	timeoutSeconds := function.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}

	headers := function.HeaderMap()
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}

	client := resty.New().SetTimeout(time.Duration(timeoutSeconds) * time.Second)

	body := make(map[string]interface{}, len(arguments)+1)
	for key, value := range arguments {
		body[key] = value
	}
	if len(callContext) > 0 {
		body["_call_context"] = callContext
	}

	var lastError string
	for attempt := uint32(0); attempt <= function.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		request := client.R().SetContext(ctx).SetHeaders(headers)
		if method == http.MethodGet {
			request.SetQueryParams(queryParams(arguments))
		} else {
			request.SetBody(body)
		}

		response, err := request.Execute(method, function.WebhookUrl)
		if err != nil {
			if isTimeout(err) {
				lastError = fmt.Sprintf("Timeout after %ds", timeoutSeconds)
			} else {
				lastError = err.Error()
			}
			c.logger.Warnf("webhook %s attempt %d/%d failed: %s", function.Name, attempt+1, function.RetryCount+1, lastError)
			continue
		}
		if response.IsError() {
			lastError = fmt.Sprintf("Webhook returned %d: %s", response.StatusCode(), snippet(response.Body()))
			c.logger.Warnf("webhook %s attempt %d/%d failed: %s", function.Name, attempt+1, function.RetryCount+1, lastError)
			continue
		}

		return decodeResponse(response.Body(), function.MappingPaths()), nil
	}

	return nil, errors.New(lastError)
}

// queryParams flattens arguments for GET requests. Call context never
// rides on GET; there is nowhere sensible to put it.
func queryParams(arguments map[string]interface{}) map[string]string {
	params := make(map[string]string, len(arguments))
	for key, value := range arguments {
		if text, ok := value.(string); ok {
			params[key] = text
		} else {
			params[key] = fmt.Sprintf("%v", value)
		}
	}
	return params
}

// decodeResponse parses the webhook body as JSON, wrapping non-object
// payloads under "response", then applies the configured mapping.
func decodeResponse(body []byte, mapping map[string]string) map[string]interface{} {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return map[string]interface{}{"response": string(body)}
	}

	object, ok := decoded.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"response": decoded}
	}
	if len(mapping) == 0 {
		return object
	}

	mapped := map[string]interface{}{"_raw": object}
	for key, path := range mapping {
		mapped[key] = EvaluatePath(object, path)
	}
	return mapped
}

// EvaluatePath walks a dotted path like "$.data.items.0.status" through
// decoded JSON. Leading "$" and "." are stripped; numeric segments index
// arrays; anything unresolvable yields nil.
func EvaluatePath(data interface{}, path string) interface{} {
	path = strings.TrimLeft(path, "$")
	path = strings.TrimLeft(path, ".")

	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			current = node[part]
		case []interface{}:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(node) {
				return nil
			}
			current = node[index]
		default:
			return nil
		}
	}
	return current
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netError net.Error
	return errors.As(err, &netError) && netError.Timeout()
}

func snippet(body []byte) string {
	text := string(body)
	if len(text) > errorSnippetLength {
		return text[:errorSnippetLength]
	}
	return text
}
