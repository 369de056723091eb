package adaptor

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

// SessionConfig is AWS settings to build a session for DynamoDB.
type SessionConfig struct {
	Region     string
	Endpoint   string
	MaxRetries int
}

// SessionFactory is constructor type of AWS session
type SessionFactory func(cfg SessionConfig) (*session.Session, error)

var (
	awsSessionCache = make(map[SessionConfig]*session.Session)
	awsSessionMutex sync.Mutex
)

// NewSession returns AWS session for cfg. Sessions are cached and shared by same SessionConfig.
func NewSession(cfg SessionConfig) (*session.Session, error) {
	awsSessionMutex.Lock()
	defer awsSessionMutex.Unlock()

	if ssn, ok := awsSessionCache[cfg]; ok {
		return ssn, nil
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region).WithMaxRetries(cfg.MaxRetries)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}

	ssn, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed session.NewSession: %s", cfg.Region)
	}

	awsSessionCache[cfg] = ssn
	return ssn, nil
}
