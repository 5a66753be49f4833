package services

import (
	"log/slog"

	"github.com/SAP-F-2025/cat-service/internal/cache"
	"github.com/SAP-F-2025/cat-service/internal/events"
	"github.com/SAP-F-2025/cat-service/internal/irt"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/validator"
)

// ServiceManager exposes the services to the transport layer
type ServiceManager interface {
	CAT() CATService
	ItemBank() ItemBankService
	ImportExport() ImportExportService
}

// Dependencies groups what the services are built from
type Dependencies struct {
	Repo      repositories.Repository
	Plans     PlanProvider
	Estimator irt.EstimatorConfig
	Exposure  cache.ExposureTracker
	Policy    ExposurePolicy
	Cache     cache.CacheService
	Publisher events.EventPublisher
	Logger    *slog.Logger
	Validator *validator.Validator
}

type serviceManager struct {
	cat          CATService
	itemBank     ItemBankService
	importExport ImportExportService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	itemBank := NewItemBankService(deps.Repo, deps.Exposure, deps.Policy, deps.Logger, deps.Validator)
	return &serviceManager{
		itemBank:     itemBank,
		cat:          NewCATService(deps.Repo, itemBank, deps.Plans, deps.Estimator, deps.Cache, deps.Publisher, deps.Logger, deps.Validator),
		importExport: NewImportExportService(deps.Repo, deps.Logger, deps.Validator),
	}
}

func (m *serviceManager) CAT() CATService {
	return m.cat
}

func (m *serviceManager) ItemBank() ItemBankService {
	return m.itemBank
}

func (m *serviceManager) ImportExport() ImportExportService {
	return m.importExport
}
