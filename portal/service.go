// Package portal exposes thin typed clients for the portal's feature
// domains. Every call goes through the shared REST client; employee-
// filtered lists go through the drift resolver. Feature payloads are
// server-defined, so types carry only the commonly-used fields and list
// decoding accepts both bare arrays and results envelopes.
package portal

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/rest"
)

type Service struct {
	client   *rest.Client
	resolver *endpoints.Resolver
}

func NewService(client *rest.Client, resolver *endpoints.Resolver) (*Service, error) {
	if client == nil {
		return nil, errors.New("[portal.NewService] client is required")
	}
	if resolver == nil {
		return nil, errors.New("[portal.NewService] resolver is required")
	}
	return &Service{client: client, resolver: resolver}, nil
}

func list[T any](ctx context.Context, s *Service, path string, query url.Values) ([]T, error) {
	result, err := s.client.GetRaw(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := result.DecodeList(&items); err != nil {
		return nil, err
	}
	return items, nil
}

func listForEmployee[T any](ctx context.Context, s *Service, path, employee string) ([]T, error) {
	if employee == "" {
		return list[T](ctx, s, path, nil)
	}
	result, err := s.resolver.ListForEmployee(ctx, path, employee, nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := result.DecodeList(&items); err != nil {
		return nil, err
	}
	return items, nil
}
