package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the part of *dynamodb.Client the counter uses.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

var _ Counter = (*DynamoCounter)(nil)

// DynamoCounter stores the count on the item whose partition key "id" is "visitors".
type DynamoCounter struct {
	client DynamoAPI
	table  string
}

const dynamoPartitionKey = "id"

func NewDynamoCounter(client DynamoAPI, table string) *DynamoCounter {
	return &DynamoCounter{
		client: client,
		table:  table,
	}
}

func (c *DynamoCounter) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoPartitionKey: &types.AttributeValueMemberS{Value: Key},
	}
}

func (c *DynamoCounter) Up(ctx context.Context) (int64, error) {
	// ADD creates the item and the attribute, starting from 0, when absent.
	out, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.table),
		Key:                      c.itemKey(),
		UpdateExpression:         aws.String("ADD #c :inc"),
		ExpressionAttributeNames: map[string]string{"#c": Field},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, storeError("dynamodb", "UpdateItem", err)
	}

	n, err := numberAttribute(out.Attributes)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, &ResponseConstructionError{Source: "dynamodb", Reason: fmt.Sprintf("count %d after increment", n)}
	}
	return n, nil
}

func (c *DynamoCounter) Get(ctx context.Context) (int64, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(c.table),
		Key:                      c.itemKey(),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#c"),
		ExpressionAttributeNames: map[string]string{"#c": Field},
	})
	if err != nil {
		return 0, storeError("dynamodb", "GetItem", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}
	return numberAttribute(out.Item)
}

func (c *DynamoCounter) Close() error {
	return nil
}

func numberAttribute(attrs map[string]types.AttributeValue) (int64, error) {
	av, ok := attrs[Field]
	if !ok {
		return 0, &ResponseConstructionError{Source: "dynamodb", Reason: "attribute " + Field + " missing"}
	}

	num, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, &ResponseConstructionError{Source: "dynamodb", Reason: fmt.Sprintf("attribute %s is %T, not a number", Field, av)}
	}

	n, err := strconv.ParseInt(num.Value, 10, 64)
	if err != nil {
		return 0, &ResponseConstructionError{Source: "dynamodb", Reason: fmt.Sprintf("attribute %s=%q: %v", Field, num.Value, err)}
	}
	return n, nil
}
