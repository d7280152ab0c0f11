package eventstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/kelseyhightower/envconfig"
)

// DynamoDBConfig is an object that we fill from the environment.
type DynamoDBConfig struct {
	Region    string `default:"us-east-1"`
	Endpoint  string `envconfig:"DYNAMODB_ENDPOINT"`
	AccessID  string `envconfig:"ACCESS_KEY_ID"`
	SecretKey string `envconfig:"SECRET_ACCESS_KEY"`

	TableName string `envconfig:"TABLE_NAME" default:"events"`
	HashKey   string `envconfig:"HASH_KEY" default:"aggregate_id"`
	RangeKey  string `envconfig:"RANGE_KEY" default:"version"`
}

// LoadDynamoDBConfig reads a DynamoDBConfig from variables named PREFIX_FIELD.
func LoadDynamoDBConfig(prefix string) (DynamoDBConfig, error) {
	var conf DynamoDBConfig
	err := envconfig.Process(prefix, &conf)
	return conf, err
}

// AWSConfig builds an aws.Config from conf. Static credentials and a custom endpoint are only
// applied when set, so a bare config falls back to the default credential chain.
func AWSConfig(ctx context.Context, conf DynamoDBConfig) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(conf.Region),
	}
	if conf.AccessID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessID, conf.SecretKey, ""),
		))
	}
	if conf.Endpoint != "" {
		endpoint := conf.Endpoint
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(_, region string, _ ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			}),
		))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// NewDynamoDBClient returns a DynamoDB client for conf.
func NewDynamoDBClient(ctx context.Context, conf DynamoDBConfig) (*dynamodb.Client, error) {
	cfg, err := AWSConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// NewStoreFromConfig returns a DynamoDBStore over the table named in conf.
func NewStoreFromConfig(ctx context.Context, conf DynamoDBConfig, opts ...DynamoDBOption) (*DynamoDBStore, error) {
	db, err := NewDynamoDBClient(ctx, conf)
	if err != nil {
		return nil, err
	}
	return GetDynamoDBStore(conf.TableName, conf.HashKey, conf.RangeKey, db, opts...), nil
}
