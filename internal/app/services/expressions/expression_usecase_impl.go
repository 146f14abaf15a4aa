package expressions

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type expressionUsecase struct {
	SchemaProvider     contracts.SchemaProvider
	ClinicalRepository contracts.ClinicalRepository
	ContextService     contracts.ContextService
	ConsentService     contracts.ConsentService
	OwnerRegistry      contracts.OwnerRegistry
	PatientUsecase     contracts.PatientUsecase
	ReportFunctions    map[string]contracts.ReportFunction
	Log                *zap.Logger
}

var (
	expressionUsecaseInstance contracts.ExpressionUsecase
	onceExpressionUsecase     sync.Once
)

func NewExpressionUsecase(
	schemaProvider contracts.SchemaProvider,
	clinicalRepository contracts.ClinicalRepository,
	contextService contracts.ContextService,
	consentService contracts.ConsentService,
	ownerRegistry contracts.OwnerRegistry,
	patientUsecase contracts.PatientUsecase,
	reportFunctions map[string]contracts.ReportFunction,
	logger *zap.Logger,
) contracts.ExpressionUsecase {
	onceExpressionUsecase.Do(func() {
		expressionUsecaseInstance = &expressionUsecase{
			SchemaProvider:     schemaProvider,
			ClinicalRepository: clinicalRepository,
			ContextService:     contextService,
			ConsentService:     consentService,
			OwnerRegistry:      ownerRegistry,
			PatientUsecase:     patientUsecase,
			ReportFunctions:    reportFunctions,
			Log:                logger,
		}
	})
	return expressionUsecaseInstance
}

// Evaluate resolves one expression for reading. Expression-level failures are
// logged and replaced with the error sentinel so one broken column never
// breaks a whole report; infrastructure failures still propagate.
func (uc *expressionUsecase) Evaluate(ctx context.Context, registryCode, expression string, owner models.OwnerRef, contextID int64) (interface{}, error) {
	value, err := uc.evaluate(ctx, registryCode, expression, owner, contextID)
	if err != nil {
		var exprErr *exceptions.FieldExpressionError
		if errors.As(err, &exprErr) {
			uc.Log.Warn("Field expression failed to evaluate",
				zap.String(constvars.LoggingExpressionKey, expression),
				zap.Error(err),
			)
			return constvars.ExpressionErrorSentinel, nil
		}
		return nil, err
	}
	return value, nil
}

func (uc *expressionUsecase) evaluate(ctx context.Context, registryCode, expression string, owner models.OwnerRef, contextID int64) (interface{}, error) {
	parsed, err := parseExpression(expression)
	if err != nil {
		return nil, err
	}

	switch parsed.Kind {
	case kindReport:
		fn, ok := uc.ReportFunctions[parsed.ReportName]
		if !ok {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unregistered report function"}
		}
		fieldOwner, err := uc.OwnerRegistry.Load(ctx, owner)
		if err != nil {
			return nil, err
		}
		return fn(ctx, fieldOwner)

	case kindClinical:
		return uc.evaluateClinical(ctx, registryCode, parsed, owner, contextID)

	case kindConsent:
		answer, err := uc.ConsentService.GetAnswer(ctx, owner, registryCode, parsed.ConsentSection, parsed.ConsentQuestion)
		if err != nil {
			return nil, err
		}
		if answer == nil {
			return nil, nil
		}
		switch parsed.ConsentField {
		case models.ConsentFieldAnswer:
			return answer.Answer, nil
		case models.ConsentFieldLastUpdate:
			return answer.LastUpdate, nil
		default:
			return answer.FirstSave, nil
		}

	case kindAddress:
		patient, err := uc.loadPatient(ctx, owner, expression)
		if err != nil {
			return nil, err
		}
		address := patient.FindAddress(parsed.AddressType)
		if address == nil {
			return nil, nil
		}
		return addressFieldValue(address, parsed.AddressField), nil

	default:
		fieldOwner, err := uc.OwnerRegistry.Load(ctx, owner)
		if err != nil {
			return nil, err
		}
		value, ok := fieldOwner.GetField(parsed.FieldName)
		if !ok {
			return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "unknown field"}
		}
		return value, nil
	}
}

func (uc *expressionUsecase) evaluateClinical(ctx context.Context, registryCode string, parsed *parsedExpression, owner models.OwnerRef, contextID int64) (interface{}, error) {
	registry, err := uc.SchemaProvider.GetRegistryDefinition(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if err := validateClinicalTarget(registry, parsed); err != nil {
		return nil, err
	}
	contextID, err = uc.resolveContext(ctx, owner, registryCode, contextID)
	if err != nil {
		return nil, err
	}
	raw, err := uc.ClinicalRepository.FindOne(ctx, registryCode, constvars.CollectionCDEs, owner, contextID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	document, err := models.ParseClinicalDocument(raw)
	if err != nil {
		return nil, err
	}
	value, found := document.GetCdeValue(parsed.FormName, parsed.SectionCode, parsed.CdeCode)
	if !found {
		return nil, nil
	}
	return value.Interface(), nil
}

// SetValue applies one expression write to the in-memory owner and document
// and returns both; nothing is persisted here. Consent answers are the one
// exception: they live in their own store and are written through the consent
// service directly.
func (uc *expressionUsecase) SetValue(ctx context.Context, registryCode, expression string, owner contracts.FieldOwner, document *models.ClinicalDocument, value interface{}, contextID int64) (contracts.FieldOwner, *models.ClinicalDocument, error) {
	parsed, err := parseExpression(expression)
	if err != nil {
		return owner, document, err
	}

	switch parsed.Kind {
	case kindReport:
		return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "report functions are read only"}

	case kindClinical:
		registry, err := uc.SchemaProvider.GetRegistryDefinition(ctx, registryCode)
		if err != nil {
			return owner, document, err
		}
		if err := validateClinicalTarget(registry, parsed); err != nil {
			return owner, document, err
		}
		form := registry.FindForm(parsed.FormName)
		if section := form.FindSection(parsed.SectionCode); section != nil && section.AllowMultiple {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "multisection values cannot be set by expression"}
		}
		if document == nil {
			document = models.NewClinicalDocument(owner.Ref(), contextID)
		}
		document.SetCdeValue(parsed.FormName, parsed.SectionCode, parsed.CdeCode, models.NewValue(value))
		return owner, document, nil

	case kindConsent:
		if parsed.ConsentField != models.ConsentFieldAnswer {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "only the consent answer is writable"}
		}
		answer, ok := value.(bool)
		if !ok {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "consent answers take a boolean"}
		}
		if err := uc.ConsentService.SetAnswer(ctx, owner.Ref(), registryCode, parsed.ConsentSection, parsed.ConsentQuestion, answer); err != nil {
			return owner, document, err
		}
		return owner, document, nil

	case kindAddress:
		patient, ok := owner.(*models.Patient)
		if !ok {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "address fields require a patient owner"}
		}
		address := patient.FindOrCreateAddress(parsed.AddressType)
		if !setAddressField(address, parsed.AddressField, value) {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "address fields take a string"}
		}
		return owner, document, nil

	default:
		if !owner.SetField(parsed.FieldName, value) {
			return owner, document, &exceptions.FieldExpressionError{Expression: expression, Reason: "unknown or mistyped field"}
		}
		return owner, document, nil
	}
}

// UpdateFieldExpressions applies a batch of expression writes best effort:
// each failing pair contributes an error string and the rest continue. The
// owner and the clinical document are persisted once, after the whole batch.
func (uc *expressionUsecase) UpdateFieldExpressions(ctx context.Context, registryCode string, owner models.OwnerRef, pairs []contracts.ExpressionValue, contextID int64) ([]string, error) {
	fieldOwner, err := uc.OwnerRegistry.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	contextID, err = uc.resolveContext(ctx, owner, registryCode, contextID)
	if err != nil {
		return nil, err
	}

	var document *models.ClinicalDocument
	raw, err := uc.ClinicalRepository.FindOne(ctx, registryCode, constvars.CollectionCDEs, owner, contextID)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if document, err = models.ParseClinicalDocument(raw); err != nil {
			return nil, err
		}
	}

	var errorMessages []string
	for _, pair := range pairs {
		fieldOwner, document, err = uc.SetValue(ctx, registryCode, pair.Expression, fieldOwner, document, pair.Value, contextID)
		if err != nil {
			uc.Log.Warn("Field expression failed to apply",
				zap.String(constvars.LoggingExpressionKey, pair.Expression),
				zap.Error(err),
			)
			errorMessages = append(errorMessages, err.Error())
		}
	}

	if document != nil {
		document.Owner = owner
		document.ContextID = contextID
		document.Timestamp = time.Now().UTC()
		if err := uc.ClinicalRepository.Upsert(ctx, registryCode, constvars.CollectionCDEs, owner, contextID, document.ToMap()); err != nil {
			return errorMessages, err
		}
	}
	if patient, ok := fieldOwner.(*models.Patient); ok {
		if err := uc.PatientUsecase.SavePatient(ctx, patient); err != nil {
			return errorMessages, err
		}
	}
	return errorMessages, nil
}

func (uc *expressionUsecase) resolveContext(ctx context.Context, owner models.OwnerRef, registryCode string, contextID int64) (int64, error) {
	if contextID != 0 {
		return contextID, nil
	}
	return uc.ContextService.GetOrCreateDefaultContext(ctx, owner, registryCode)
}

func (uc *expressionUsecase) loadPatient(ctx context.Context, owner models.OwnerRef, expression string) (*models.Patient, error) {
	fieldOwner, err := uc.OwnerRegistry.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	patient, ok := fieldOwner.(*models.Patient)
	if !ok {
		return nil, &exceptions.FieldExpressionError{Expression: expression, Reason: "address fields require a patient owner"}
	}
	return patient, nil
}

func validateClinicalTarget(registry *models.Registry, parsed *parsedExpression) error {
	form := registry.FindForm(parsed.FormName)
	if form == nil {
		return &exceptions.FieldExpressionError{Expression: parsed.FormName + "/" + parsed.SectionCode + "/" + parsed.CdeCode, Reason: "unknown form " + parsed.FormName}
	}
	section := form.FindSection(parsed.SectionCode)
	if section == nil {
		return &exceptions.FieldExpressionError{Expression: parsed.FormName + "/" + parsed.SectionCode + "/" + parsed.CdeCode, Reason: "unknown section " + parsed.SectionCode}
	}
	if section.FindCde(parsed.CdeCode) == nil {
		return &exceptions.FieldExpressionError{Expression: parsed.FormName + "/" + parsed.SectionCode + "/" + parsed.CdeCode, Reason: "unknown cde " + parsed.CdeCode}
	}
	return nil
}
