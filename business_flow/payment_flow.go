package businessflow

import (
	"context"
	"regexp"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// paymentRefPattern is the gateway's reference shape. Checked before any
// network call so malformed references never reach the gateway.
var paymentRefPattern = regexp.MustCompile(`^pay_[A-Za-z0-9]{10,30}$`)

// QuotaStore reads and atomically mutates an operator's quota record.
// Mutate runs fn with the current record (nil when none exists); fn returns
// the replacement record, or nil for no change.
type QuotaStore interface {
	Get(ctx context.Context, operatorID string) (*models.QuotaRecord, error)
	Mutate(ctx context.Context, operatorID string, fn func(current *models.QuotaRecord) (*models.QuotaRecord, error)) (*models.QuotaRecord, error)
}

// ReplayGuard remembers payment references that already unlocked a campaign
type ReplayGuard interface {
	Seen(ctx context.Context, reference string) (bool, error)
	Mark(ctx context.Context, reference string) error
}

// RedisReplayGuard implements ReplayGuard on redis. Keys never expire: a
// settled payment stays consumed.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayGuard creates a redis-backed replay guard
func NewRedisReplayGuard(client *redis.Client, prefix string) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, prefix: prefix}
}

func (g *RedisReplayGuard) key(reference string) string {
	return g.prefix + "payment:used:" + reference
}

func (g *RedisReplayGuard) Seen(ctx context.Context, reference string) (bool, error) {
	n, err := g.client.Exists(ctx, g.key(reference)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *RedisReplayGuard) Mark(ctx context.Context, reference string) error {
	return g.client.Set(ctx, g.key(reference), "1", 0).Err()
}

// MemoryReplayGuard implements ReplayGuard in process memory for
// development and testing.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryReplayGuard creates an in-memory replay guard
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]struct{})}
}

func (g *MemoryReplayGuard) Seen(ctx context.Context, reference string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[reference]
	return ok, nil
}

func (g *MemoryReplayGuard) Mark(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[reference] = struct{}{}
	return nil
}

// PaymentOutcome is the result of a verification attempt
type PaymentOutcome struct {
	Verified           bool
	Reason             string
	RemainingCampaigns int
}

// PaymentFlow verifies payment references and maintains operator quotas
type PaymentFlow interface {
	// PaymentPageURL returns the hosted checkout location for a plan.
	PaymentPageURL(planID string) string
	// VerifyAndConsume checks the reference shape, the replay guard, and the
	// gateway, then debits the operator's quota. A nil error with
	// Verified=false is a definitive rejection the operator can act on.
	VerifyAndConsume(ctx context.Context, operatorID, reference string, plan *models.Plan) (*PaymentOutcome, error)
}

// PaymentFlowImpl implements PaymentFlow against the gateway client, the
// replay guard, and the quota store.
type PaymentFlowImpl struct {
	gateway services.PaymentGatewayService
	replay  ReplayGuard
	quotas  QuotaStore
}

// NewPaymentFlow creates a new payment flow
func NewPaymentFlow(gateway services.PaymentGatewayService, replay ReplayGuard, quotas QuotaStore) PaymentFlow {
	return &PaymentFlowImpl{
		gateway: gateway,
		replay:  replay,
		quotas:  quotas,
	}
}

func (f *PaymentFlowImpl) PaymentPageURL(planID string) string {
	return f.gateway.PaymentPageURL(planID)
}

// ValidPaymentReference reports whether a reference matches the gateway's
// shape. Exported for request validation at the edge.
func ValidPaymentReference(reference string) bool {
	return paymentRefPattern.MatchString(reference)
}

func (f *PaymentFlowImpl) VerifyAndConsume(ctx context.Context, operatorID, reference string, plan *models.Plan) (*PaymentOutcome, error) {
	if !ValidPaymentReference(reference) {
		return nil, NewBusinessError("PAYMENT_REFERENCE_MALFORMED", "payment reference does not match the expected shape", ErrPaymentReferenceShape)
	}

	used, err := f.replay.Seen(ctx, reference)
	if err != nil {
		return nil, NewBusinessError("GATEWAY_UNAVAILABLE", "replay guard unavailable", wrapTransport(err, ErrGatewayUnavailable))
	}
	if used {
		return &PaymentOutcome{
			Verified: false,
			Reason:   "payment reference already used",
		}, nil
	}

	verified, message, err := f.gateway.Verify(ctx, reference, plan.ID, plan.Price)
	if err != nil {
		return nil, NewBusinessError("GATEWAY_UNAVAILABLE", "payment gateway unavailable", wrapTransport(err, ErrGatewayUnavailable))
	}
	if !verified {
		return &PaymentOutcome{
			Verified: false,
			Reason:   message,
		}, nil
	}

	record, err := f.consumeQuota(ctx, operatorID, reference, plan)
	if err != nil {
		return nil, err
	}

	if err := f.replay.Mark(ctx, reference); err != nil {
		// The quota debit stands; a lost replay mark only weakens the guard.
		return &PaymentOutcome{
			Verified:           true,
			RemainingCampaigns: record.RemainingCampaigns,
		}, nil
	}

	return &PaymentOutcome{
		Verified:           true,
		RemainingCampaigns: record.RemainingCampaigns,
	}, nil
}

// consumeQuota debits one campaign from the operator's quota. A payment for
// a different plan than the stored record replaces the record wholesale:
// the new purchase supersedes whatever balance remained.
func (f *PaymentFlowImpl) consumeQuota(ctx context.Context, operatorID, reference string, plan *models.Plan) (*models.QuotaRecord, error) {
	record, err := f.quotas.Mutate(ctx, operatorID, func(current *models.QuotaRecord) (*models.QuotaRecord, error) {
		if current == nil || current.PlanID != plan.ID {
			return &models.QuotaRecord{
				OperatorID:         operatorID,
				PlanID:             plan.ID,
				TotalCampaigns:     plan.CampaignQuota,
				RemainingCampaigns: plan.CampaignQuota - 1,
				PurchasedAt:        utils.UTCNow(),
				PaymentReference:   reference,
			}, nil
		}
		next := *current
		if next.RemainingCampaigns > 0 {
			next.RemainingCampaigns--
		}
		next.PaymentReference = reference
		next.PurchasedAt = utils.UTCNow()
		return &next, nil
	})
	if err != nil {
		return nil, NewBusinessError("QUOTA_UPDATE_FAILED", "failed to update campaign quota", err)
	}
	return record, nil
}
