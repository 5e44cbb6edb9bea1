package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Dynamo stores each collection in its own table keyed by "id", and the
// transcript in a messages table keyed by (user_id, ts).
type Dynamo struct {
	client      DynamoAPI
	tablePrefix string
}

// NewDynamo creates a DynamoDB-backed store. Table names are
// tablePrefix + collection, and tablePrefix + "messages".
func NewDynamo(client DynamoAPI, tablePrefix string) *Dynamo {
	return &Dynamo{client: client, tablePrefix: tablePrefix}
}

type dynamoMessage struct {
	UserID    string `dynamodbav:"user_id"`
	Timestamp int64  `dynamodbav:"ts"`
	ID        string `dynamodbav:"id"`
	Role      string `dynamodbav:"role"`
	Content   string `dynamodbav:"content"`
}

func (d *Dynamo) table(collection string) *string {
	return aws.String(d.tablePrefix + collection)
}

func (d *Dynamo) Close() error { return nil }

// List scans the collection table, following pagination until the limit is
// reached or the table is exhausted.
func (d *Dynamo) List(ctx context.Context, collection string, f Filter) ([]Document, error) {
	if d.client == nil {
		return nil, fmt.Errorf("DynamoDB client not initialized")
	}

	input := &dynamodb.ScanInput{TableName: d.table(collection)}
	if len(f.Equals) > 0 {
		names := map[string]string{}
		values := map[string]dynamodbtypes.AttributeValue{}
		var conds []string
		for i, field := range slices.Sorted(maps.Keys(f.Equals)) {
			n, v := "#f"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
			av, err := attributevalue.Marshal(f.Equals[field])
			if err != nil {
				return nil, fmt.Errorf("marshal filter %s: %w", field, err)
			}
			names[n] = field
			values[v] = av
			conds = append(conds, n+" = "+v)
		}
		input.FilterExpression = aws.String(strings.Join(conds, " AND "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var docs []Document
	for {
		result, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		for _, item := range result.Items {
			var doc Document
			if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
				continue
			}
			docs = append(docs, doc)
			if f.Limit > 0 && len(docs) >= f.Limit {
				return docs, nil
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return docs, nil
}

func (d *Dynamo) Get(ctx context.Context, collection, id string) (Document, error) {
	if d.client == nil {
		return nil, fmt.Errorf("DynamoDB client not initialized")
	}
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: d.table(collection),
		Key: map[string]dynamodbtypes.AttributeValue{
			"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	var doc Document
	if err := attributevalue.UnmarshalMap(result.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// GetMany fetches each distinct id in turn; missing ids are skipped.
func (d *Dynamo) GetMany(ctx context.Context, collection string, ids []string) ([]Document, error) {
	var out []Document
	for _, id := range dedupe(ids) {
		doc, err := d.Get(ctx, collection, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (d *Dynamo) Put(ctx context.Context, collection, id string, doc Document) error {
	if d.client == nil {
		return fmt.Errorf("DynamoDB client not initialized")
	}
	withID := maps.Clone(doc)
	if withID == nil {
		withID = Document{}
	}
	withID["id"] = id
	item, err := attributevalue.MarshalMap(withID)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: d.table(collection),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (d *Dynamo) AppendMessage(ctx context.Context, userID string, msg domain.ConversationMessage) error {
	if d.client == nil {
		return fmt.Errorf("DynamoDB client not initialized")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	item, err := attributevalue.MarshalMap(dynamoMessage{
		UserID:    userID,
		Timestamp: msg.Timestamp.UnixNano(),
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: d.table("messages"),
		Item:      item,
		// Append-only: never overwrite an existing entry.
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to append message for %s: %w", userID, err)
	}
	return nil
}

func (d *Dynamo) Messages(ctx context.Context, userID string, limit int) ([]domain.ConversationMessage, error) {
	if d.client == nil {
		return nil, fmt.Errorf("DynamoDB client not initialized")
	}
	input := &dynamodb.QueryInput{
		TableName:              d.table("messages"),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":u": &dynamodbtypes.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var results []domain.ConversationMessage
	for {
		out, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query messages for %s: %w", userID, err)
		}
		for _, item := range out.Items {
			var m dynamoMessage
			if err := attributevalue.UnmarshalMap(item, &m); err != nil {
				continue
			}
			role := domain.RoleUser
			if m.Role == string(domain.RoleAssistant) {
				role = domain.RoleAssistant
			}
			results = append(results, domain.ConversationMessage{
				ID:        m.ID,
				Role:      role,
				Content:   m.Content,
				Timestamp: time.Unix(0, m.Timestamp).UTC(),
			})
		}
		if (limit > 0 && len(results) >= limit) || out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	slices.Reverse(results)
	return results, nil
}
