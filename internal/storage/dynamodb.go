package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

// activeBatchesKey is the reserved BatchID under which the active-batch-id
// registry item lives in the batch table.
const activeBatchesKey = "_active_batches"

type activeBatchRecord struct {
	BatchID string   `dynamodbav:"BatchID"`
	IDs     []string `dynamodbav:"IDs"`
}

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs when
		// static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) putItem(table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for %s: %w", table, err)
	}
	_, err = s.client.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item into %s: %w", table, err)
	}
	return nil
}

func (s *DynamoDBStore) getItem(table, pkName, pkValue string, out any) (bool, error) {
	result, err := s.client.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]dbtypes.AttributeValue{
			pkName: &dbtypes.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item from %s: %w", table, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item from %s: %w", table, err)
	}
	return true, nil
}

func (s *DynamoDBStore) SaveAgent(rec types.AgentRecord) error {
	return s.putItem(s.config.AgentsTable, rec)
}

func (s *DynamoDBStore) GetAgent(id string) (*types.AgentRecord, error) {
	var rec types.AgentRecord
	found, err := s.getItem(s.config.AgentsTable, "AgentID", id, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *DynamoDBStore) ListAgents() ([]types.AgentRecord, error) {
	result, err := s.client.Scan(context.Background(), &dynamodb.ScanInput{
		TableName: aws.String(s.config.AgentsTable),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan agents: %w", err)
	}

	var records []types.AgentRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agents: %w", err)
	}
	return records, nil
}

func (s *DynamoDBStore) DeleteAgent(id string) error {
	_, err := s.client.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.AgentsTable),
		Key: map[string]dbtypes.AttributeValue{
			"AgentID": &dbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) SaveBatchState(rec types.BatchStateRecord) error {
	return s.putItem(s.config.BatchTable, rec)
}

func (s *DynamoDBStore) GetBatchState(id string) (*types.BatchStateRecord, error) {
	var rec types.BatchStateRecord
	found, err := s.getItem(s.config.BatchTable, "BatchID", id, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *DynamoDBStore) ListBatchStates() ([]types.BatchStateRecord, error) {
	// The registry item shares the batch table, so filter it out of scans
	filter := expression.Name("BatchID").NotEqual(expression.Value(activeBatchesKey))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Scan(context.Background(), &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.BatchTable),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch state: %w", err)
	}

	var records []types.BatchStateRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch state: %w", err)
	}
	return records, nil
}

func (s *DynamoDBStore) DeleteBatchState(id string) error {
	_, err := s.client.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.BatchTable),
		Key: map[string]dbtypes.AttributeValue{
			"BatchID": &dbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete batch state: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) SaveActiveBatchIDs(ids []string) error {
	return s.putItem(s.config.BatchTable, activeBatchRecord{
		BatchID: activeBatchesKey,
		IDs:     ids,
	})
}

func (s *DynamoDBStore) GetActiveBatchIDs() ([]string, error) {
	var rec activeBatchRecord
	found, err := s.getItem(s.config.BatchTable, "BatchID", activeBatchesKey, &rec)
	if err != nil || !found {
		return nil, err
	}
	return rec.IDs, nil
}

func (s *DynamoDBStore) SaveAuditEvent(rec types.AuditRecord) error {
	return s.putItem(s.config.AuditTable, rec)
}

// TruncateAll deletes all items from every table (scan + batch delete)
func (s *DynamoDBStore) TruncateAll() error {
	tables := []struct {
		name string
		pk   string
		sk   string
	}{
		{s.config.AgentsTable, "AgentID", ""},
		{s.config.BatchTable, "BatchID", ""},
		{s.config.AuditTable, "DateKey", "EventID"},
	}

	for _, table := range tables {
		if err := s.truncateTable(table.name, table.pk, table.sk); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table.name, err)
		}
	}
	return nil
}

func (s *DynamoDBStore) truncateTable(tableName, pk, sk string) error {
	var lastKey map[string]dbtypes.AttributeValue

	projection := "#pk"
	names := map[string]string{"#pk": pk}
	if sk != "" {
		projection = "#pk, #sk"
		names["#sk"] = sk
	}

	for {
		input := &dynamodb.ScanInput{
			TableName:                aws.String(tableName),
			ProjectionExpression:     aws.String(projection),
			ExpressionAttributeNames: names,
			Limit:                    aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(context.Background(), input)
		if err != nil {
			return err
		}

		// Batch delete in groups of 25
		for i := 0; i < len(result.Items); i += 25 {
			end := i + 25
			if end > len(result.Items) {
				end = len(result.Items)
			}

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				key := map[string]dbtypes.AttributeValue{pk: item[pk]}
				if sk != "" {
					key[sk] = item[sk]
				}
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{Key: key},
				})
			}

			_, err := s.client.BatchWriteItem(context.Background(), &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					tableName: requests,
				},
			})
			if err != nil {
				return err
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	s.logger.Info().Str("table", tableName).Msg("table truncated")
	return nil
}

// NewStore creates the appropriate store based on configuration. With
// DYNAMO_MODE=none everything lives in memory and durability is best-effort
// for the lifetime of the process.
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none), using in-memory store")
		return NewMemoryStore(), nil
	}
}
