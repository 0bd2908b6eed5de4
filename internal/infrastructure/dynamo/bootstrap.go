package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/config"
	"go.uber.org/zap"
)

// Bootstrap creates the users and identity guard tables if they don't already exist.
// Safe to call on every startup.
func Bootstrap(ctx context.Context, client API, tables config.DynamoTables, log *zap.Logger) {
	createTable(ctx, client, log, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Users),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrUserID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrUserID), KeyType: types.KeyTypeHash},
		},
	})

	createTable(ctx, client, log, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.UserIdentities),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrIdentity), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrIdentity), KeyType: types.KeyTypeHash},
		},
	})
}

func createTable(ctx context.Context, client API, log *zap.Logger, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			log.Warn("could not create table", zap.String("table", *input.TableName), zap.Error(err))
		}
		return
	}
	log.Info("created table", zap.String("table", *input.TableName))
}
