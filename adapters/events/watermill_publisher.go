package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

const (
	// SettlementTopic carries one message per finished settlement operation
	SettlementTopic = "estate.settlement"

	// DeployedTopic carries newly deployed property addresses for the
	// property registry to persist
	DeployedTopic = "estate.property.deployed"
)

// DeployedEvent announces a property contract address for a registry record
type DeployedEvent struct {
	PropertyID int64     `json:"property_id"`
	Address    string    `json:"address"`
	RecordedAt time.Time `json:"recorded_at"`
}

// WatermillPublisher implements EventPublisher and DeploymentRecorder using Watermill
type WatermillPublisher struct {
	publisher     message.Publisher
	settleTopic   string
	deployedTopic string
}

var (
	_ ports.EventPublisher     = (*WatermillPublisher)(nil)
	_ ports.DeploymentRecorder = (*WatermillPublisher)(nil)
)

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:     publisher,
		settleTopic:   SettlementTopic,
		deployedTopic: DeployedTopic,
	}
}

// PublishSettlement publishes a settlement outcome
func (p *WatermillPublisher) PublishSettlement(ctx context.Context, event core.SettlementEvent) error {
	return p.publish(ctx, p.settleTopic, event)
}

// RecordDeployedAddress hands the deployed address to the property registry
func (p *WatermillPublisher) RecordDeployedAddress(ctx context.Context, propertyID int64, address common.Address) error {
	if propertyID <= 0 {
		return fmt.Errorf("invalid property id %d", propertyID)
	}

	return p.publish(ctx, p.deployedTopic, DeployedEvent{
		PropertyID: propertyID,
		Address:    core.Checksum(address),
		RecordedAt: time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
