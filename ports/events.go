package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/estate/core"
)

// EventPublisher publishes settlement outcomes to other services
type EventPublisher interface {
	PublishSettlement(ctx context.Context, event core.SettlementEvent) error
}

// DeploymentRecorder persists the address of a freshly deployed property.
// It is not transactional with the deployment itself.
type DeploymentRecorder interface {
	RecordDeployedAddress(ctx context.Context, propertyID int64, address common.Address) error
}
