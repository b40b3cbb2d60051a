package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// PutRunReport stores a run summary record.
func (s *DynamoDBStore) PutRunReport(ctx context.Context, report types.RunReport) error {
	item, err := attributevalue.MarshalMap(report)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	item["PK"] = &ddbtypes.AttributeValueMemberS{Value: pkRuns}
	item["SK"] = &ddbtypes.AttributeValueMemberS{Value: runSK(report.StartedAt, report.RunID)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("storing run report: %w", err)
	}
	return nil
}

// ListRunReports returns the most recent run reports, newest first.
func (s *DynamoDBStore) ListRunReports(ctx context.Context, limit int) ([]types.RunReport, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: pkRuns},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	resp, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("listing run reports: %w", err)
	}

	out := make([]types.RunReport, 0, len(resp.Items))
	for _, item := range resp.Items {
		var report types.RunReport
		if err := attributevalue.UnmarshalMap(item, &report); err != nil {
			return nil, fmt.Errorf("unmarshaling run report: %w", err)
		}
		out = append(out, report)
	}
	return out, nil
}
