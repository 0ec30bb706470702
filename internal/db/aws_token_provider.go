package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// rdsTokenLifetime is how long RDS accepts a generated IAM token.
const rdsTokenLifetime = 15 * time.Minute

// AWSIAMTokenProvider signs RDS IAM tokens with the default AWS credential
// chain. The chain is resolved once and reused for every token.
type AWSIAMTokenProvider struct {
	endpoint string // host:port
	region   string
	username string

	once   sync.Once
	creds  aws.CredentialsProvider
	errCfg error
}

// NewAWSIAMTokenProvider validates the RDS endpoint (host:port), region and
// IAM-enabled database user.
func NewAWSIAMTokenProvider(endpoint, region, username string) (*AWSIAMTokenProvider, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires POSTGRES_HOST and POSTGRES_PORT", csvingest.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires AWS_REGION", csvingest.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires POSTGRES_USER", csvingest.ErrInvalidConfig)
	}
	return &AWSIAMTokenProvider{endpoint: endpoint, region: region, username: username}, nil
}

func (p *AWSIAMTokenProvider) credentials(ctx context.Context) (aws.CredentialsProvider, error) {
	p.once.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
		if err != nil {
			p.errCfg = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		p.creds = cfg.Credentials
	})
	return p.creds, p.errCfg
}

// GetToken builds a fresh token for the next connection.
func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	creds, err := p.credentials(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	issued := time.Now()
	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, creds)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	return token, issued.Add(rdsTokenLifetime), nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWSIAMTokenProvider(endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}
