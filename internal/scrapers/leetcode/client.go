package leetcode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cpstats-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const report_client_graphql_query = "client.graphql-query"

type graphqlRequest struct {
	Name      string `json:"operationName"`
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// GraphqlError is returned when the api responds with an error-shaped payload.
type GraphqlError struct {
	Operation string
	Messages  []string
}

func (e GraphqlError) Error() string {
	return fmt.Sprintf("graphql %s: %s", e.Operation, strings.Join(e.Messages, "; "))
}

func graphqlQuery[O any](
	ctx context.Context,
	http *resty.Client,
	tel telemetry.API,
	name,
	query string,
	variables any,
	output *O,
) error {
	tel.ReportDebug(report_client_graphql_query, name, variables)

	body, err := json.Marshal(graphqlRequest{
		Name:      name,
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	res, err := http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(body).
		Post("/graphql")
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	parsed := graphqlResponse[O]{}
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		if res.IsError() {
			return fmt.Errorf("fetch: unexpected status %d", res.StatusCode())
		}
		return fmt.Errorf("unmarshal json: %w", err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			messages[i] = e.Message
		}
		return GraphqlError{Operation: name, Messages: messages}
	}
	if res.IsError() {
		return fmt.Errorf("fetch: unexpected status %d", res.StatusCode())
	}

	*output = parsed.Data

	tel.ReportDebug(
		fmt.Sprintf("%s response", report_client_graphql_query),
		name,
		parsed.Data,
	)

	return nil
}
