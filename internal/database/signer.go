package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
)

// TokenSigner issues the short-lived secret used as the connection password.
type TokenSigner interface {
	Token(ctx context.Context, endpoint, region string) (string, error)
}

// StaticPassword is a TokenSigner for plain Postgres deployments and local
// development, where the password never rotates.
type StaticPassword string

func (p StaticPassword) Token(ctx context.Context, endpoint, region string) (string, error) {
	return string(p), nil
}

// DSQLSigner generates IAM authentication tokens for Aurora DSQL using the
// default AWS credential chain.
type DSQLSigner struct {
	credentials aws.CredentialsProvider
	admin       bool
}

func NewDSQLSigner(ctx context.Context, user string) (*DSQLSigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &DSQLSigner{
		credentials: awsCfg.Credentials,
		admin:       user == "admin",
	}, nil
}

func (s *DSQLSigner) Token(ctx context.Context, endpoint, region string) (string, error) {
	var (
		token string
		err   error
	)
	if s.admin {
		token, err = auth.GenerateDBConnectAdminAuthToken(ctx, endpoint, region, s.credentials)
	} else {
		token, err = auth.GenerateDbConnectAuthToken(ctx, endpoint, region, s.credentials)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate DSQL auth token: %w", err)
	}
	return token, nil
}
