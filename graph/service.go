package graph

import (
	"context"
	"net/http"
)

// Service fetches the signed-in user's profile.
type Service struct {
	endpoint   string
	httpClient *http.Client
}

func NewService(endpoint string, httpClient *http.Client) *Service {
	return &Service{endpoint: endpoint, httpClient: httpClient}
}

// FetchProfile reads /me with accessToken. The token is used as is and never refreshed.
func (s *Service) FetchProfile(ctx context.Context, accessToken string) (User, error) {
	client := NewClient(s.endpoint, func(context.Context) (string, error) {
		return accessToken, nil
	}, s.httpClient)

	var user User
	if err := client.API("/me").Get(ctx, &user); err != nil {
		return User{}, err
	}
	return user, nil
}
