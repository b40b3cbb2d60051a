package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// GetWatermark returns the watermark for (channel, qc level), or nil when absent.
func (s *DynamoDBStore) GetWatermark(ctx context.Context, channelID string, qcLevel int) (*types.Watermark, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: pkWatermarks},
			"SK": &ddbtypes.AttributeValueMemberS{Value: watermarkSK(qcLevel, channelID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting watermark: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return itemToWatermark(out.Item)
}

// AdvanceWatermark moves the watermark forward using a conditional update,
// so a timestamp at or before the stored value is a server-side no-op.
func (s *DynamoDBStore) AdvanceWatermark(ctx context.Context, channelID string, qcLevel int, coveredThrough time.Time) error {
	now := time.Now().UTC()
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: pkWatermarks},
			"SK": &ddbtypes.AttributeValueMemberS{Value: watermarkSK(qcLevel, channelID)},
		},
		UpdateExpression:    aws.String("SET channelId = :ch, qcLevel = :qc, coveredThrough = :ct, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_not_exists(coveredThrough) OR coveredThrough < :ct"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":ch":  &ddbtypes.AttributeValueMemberS{Value: channelID},
			":qc":  &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", qcLevel)},
			":ct":  &ddbtypes.AttributeValueMemberS{Value: coveredThrough.UTC().Format(time.RFC3339Nano)},
			":now": &ddbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil // never regress
		}
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}

// ListWatermarks returns all watermarks for a QC level, ordered by channel id.
func (s *DynamoDBStore) ListWatermarks(ctx context.Context, qcLevel int) ([]types.Watermark, error) {
	var (
		out      []types.Watermark
		startKey map[string]ddbtypes.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk":     &ddbtypes.AttributeValueMemberS{Value: pkWatermarks},
				":prefix": &ddbtypes.AttributeValueMemberS{Value: watermarkLevelPrefix(qcLevel)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("listing watermarks: %w", err)
		}
		for _, item := range resp.Items {
			wm, err := itemToWatermark(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *wm)
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}

func itemToWatermark(item map[string]ddbtypes.AttributeValue) (*types.Watermark, error) {
	wm := &types.Watermark{}

	if av, ok := item["channelId"].(*ddbtypes.AttributeValueMemberS); ok {
		wm.ChannelID = av.Value
	}
	if av, ok := item["qcLevel"].(*ddbtypes.AttributeValueMemberN); ok {
		if _, err := fmt.Sscanf(av.Value, "%d", &wm.QCLevel); err != nil {
			return nil, fmt.Errorf("parsing qcLevel %q: %w", av.Value, err)
		}
	}
	if av, ok := item["coveredThrough"].(*ddbtypes.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339Nano, av.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing coveredThrough %q: %w", av.Value, err)
		}
		wm.CoveredThrough = t
	}
	if av, ok := item["updatedAt"].(*ddbtypes.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339Nano, av.Value); err == nil {
			wm.UpdatedAt = t
		}
	}
	return wm, nil
}
