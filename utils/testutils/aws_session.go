package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/kelseyhightower/envconfig"

	"github.com/cannahum/cqrs-lite/eventstore"
)

// EnvPrefix is the prefix of the variables describing the test AWS environment.
const EnvPrefix = "AWSCONFIG"

var (
	cfgOnce sync.Once
	cfg     aws.Config
	conf    eventstore.DynamoDBConfig
)

// GetAWSConfig returns the DynamoDB settings of the test environment.
func GetAWSConfig() eventstore.DynamoDBConfig {
	load()
	return conf
}

// GetAWSCfg is a quick way to retrieve the AWS config. Uses environment variables.
func GetAWSCfg() aws.Config {
	load()
	return cfg
}

func load() {
	cfgOnce.Do(func() {
		envconfig.MustProcess(EnvPrefix, &conf)
		var err error
		cfg, err = eventstore.AWSConfig(context.Background(), conf)
		if err != nil {
			panic(err)
		}
	})
}

// RequireAWS skips t unless a DynamoDB endpoint is configured.
func RequireAWS(t testing.TB) {
	t.Helper()
	if GetAWSConfig().Endpoint == "" {
		t.Skip(EnvPrefix + "_DYNAMODB_ENDPOINT is not set")
	}
}
