// Package biz contains business logic layer implementations.
// This layer holds the core governance rules and domain models.
package biz

import (
	"github.com/cuongccna/ProjectBotTrading/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewReviewUsecase,
	NewDecisionAuthorizer,
	NewTriggerDetector,
	NewSLAEscalationTask,
	NewOutcomeUsecase,
	// Import data layer providers
	data.NewReviewRepo,
	data.NewAuditRepo,
	data.NewNotifier,
	data.NewViolationCounter,
	data.NewParamStore,
	data.NewSignalStore,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(ReviewRepo), new(*data.ReviewRepo)),
	wire.Bind(new(AuditRepo), new(*data.AuditRepo)),
	wire.Bind(new(Notifier), new(*data.RedisNotifier)),
	wire.Bind(new(ViolationCounter), new(*data.RedisViolationCounter)),
	wire.Bind(new(ParamStore), new(*data.ParamStoreRepo)),
	wire.Bind(new(SignalStore), new(*data.RedisSignalStore)),
)
