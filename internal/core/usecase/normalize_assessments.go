package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-sync-service/internal/constants"
	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeAssessmentsUseCase превращает сырые строки фида оценщика в
// канонические записи Property. Ошибки отдельных строк накапливаются
// и не прерывают пачку.
type NormalizeAssessmentsUseCase struct {
	policy port.EstimationPolicyPort
	caser  cases.Caser
}

// NewNormalizeAssessmentsUseCase создает новый экземпляр use case.
func NewNormalizeAssessmentsUseCase(policy port.EstimationPolicyPort) *NormalizeAssessmentsUseCase {
	return &NormalizeAssessmentsUseCase{
		policy: policy,
		caser:  cases.Title(language.AmericanEnglish),
	}
}

// Execute выполняет нормализацию пачки. Возвращенный срез ошибок содержит
// по одной ошибке на каждую пропущенную строку.
func (uc *NormalizeAssessmentsUseCase) Execute(ctx context.Context, raw []domain.RawAssessment, jurisdiction string) ([]domain.Property, []error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":     "NormalizeAssessments",
		"jurisdiction": jurisdiction,
		"raw_count":    len(raw),
	})

	properties := make([]domain.Property, 0, len(raw))
	var errs []error

	for i, rec := range raw {
		prop, err := uc.normalizeOne(rec, jurisdiction)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d (key %q): %w", i, rec.SourceKey, err))
			continue
		}
		properties = append(properties, *prop)
	}

	if len(errs) > 0 {
		ucLogger.Warn("Some records were skipped during normalization", port.Fields{
			"skipped": len(errs),
			"kept":    len(properties),
		})
	} else {
		ucLogger.Debug("Normalization finished without skips", port.Fields{"kept": len(properties)})
	}

	return properties, errs
}

func (uc *NormalizeAssessmentsUseCase) normalizeOne(rec domain.RawAssessment, jurisdiction string) (*domain.Property, error) {
	if rec.SourceKey == "" {
		return nil, fmt.Errorf("missing mandatory source key")
	}

	assessed, err := parseMoney(rec.AssessedValue)
	if err != nil {
		return nil, fmt.Errorf("unparseable assessed value %q: %w", rec.AssessedValue, err)
	}

	ratio, ok := constants.EqualizationRatios[jurisdiction]
	if !ok {
		ratio = 1.0
	}
	estimated := assessed * ratio

	now := time.Now().UTC()
	prop := domain.Property{
		ID:             uuid.New(),
		Jurisdiction:   jurisdiction,
		SourceKey:      rec.SourceKey,
		CreatedAt:      now,
		UpdatedAt:      now,
		Address:        strings.TrimSpace(rec.Address),
		Municipality:   uc.caser.String(strings.ToLower(strings.TrimSpace(rec.Municipality))),
		County:         uc.caser.String(strings.ToLower(strings.TrimSpace(rec.County))),
		Neighborhood:   strings.TrimSpace(rec.District),
		ZipCode:        strings.TrimSpace(rec.ZipCode),
		State:          constants.JurisdictionStates[jurisdiction],
		PropertyType:   lookupPropertyType(jurisdiction, rec.LandUseCode),
		AssessedValue:  assessed,
		EstimatedValue: estimated,
		ParcelKey:      rec.ParcelKey,
	}

	// Координаты: либо из записи, либо центроид муниципалитета с джиттером.
	// Приближенная геопривязка помечается в provenance.
	if rec.Latitude != nil && rec.Longitude != nil {
		prop.Latitude = *rec.Latitude
		prop.Longitude = *rec.Longitude
	} else {
		centroid := lookupCentroid(jurisdiction, prop.Municipality)
		prop.Latitude, prop.Longitude = uc.policy.JitterCoordinate(centroid.Lat, centroid.Lng)
		prop.Provenance.GeoApproximate = true
	}

	// Физические атрибуты: отсутствующие синтезируются политикой оценки.
	// Площадь идет первой, от нее зависят спальни и цена за кв. фут.
	if rec.Sqft != nil && *rec.Sqft > 0 {
		prop.Sqft = rec.Sqft
	} else {
		sqft := uc.policy.EstimateSqft(prop.PropertyType)
		prop.Sqft = &sqft
		prop.Provenance.SqftEstimated = true
	}

	if rec.Beds != nil {
		prop.Beds = rec.Beds
	} else {
		beds := uc.policy.EstimateBeds(prop.PropertyType, prop.Sqft)
		prop.Beds = &beds
		prop.Provenance.BedsEstimated = true
	}

	if rec.Baths != nil {
		prop.Baths = rec.Baths
	} else {
		baths := uc.policy.EstimateBaths(prop.PropertyType, *prop.Beds)
		prop.Baths = &baths
		prop.Provenance.BathsEstimated = true
	}

	if rec.YearBuilt != nil {
		prop.YearBuilt = rec.YearBuilt
	} else {
		year := uc.policy.EstimateYearBuilt(jurisdiction)
		prop.YearBuilt = &year
		prop.Provenance.YearBuiltEstimated = true
	}

	if prop.Sqft != nil && *prop.Sqft > 0 {
		ppsf := prop.EstimatedValue / *prop.Sqft
		prop.PricePerSqft = &ppsf
	}

	// Данные о последней сделке опциональны: непарсибельные значения
	// просто остаются пустыми, запись из-за них не бракуется.
	if price, err := parseMoney(rec.LastSalePrice); err == nil {
		prop.LastSalePrice = &price
	}
	if rec.LastSaleDate != "" {
		if saleDate, err := time.Parse("2006-01-02", rec.LastSaleDate); err == nil {
			prop.LastSaleDate = &saleDate
		}
	}

	return &prop, nil
}

// lookupPropertyType переводит код землепользования юрисдикции в канонический
// тип. Неизвестные коды попадают в категорию по умолчанию PropertyTypeOther.
func lookupPropertyType(jurisdiction, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	var table map[string]string
	switch jurisdiction {
	case constants.JurisdictionNJ:
		table = constants.NJPropertyClassMap
	case constants.JurisdictionCT:
		table = constants.CTStateUseCodeMap
	}

	if t, ok := table[code]; ok {
		return t
	}
	return domain.PropertyTypeOther
}

func lookupCentroid(jurisdiction, municipality string) constants.Centroid {
	key := jurisdiction + "|" + strings.ToLower(municipality)
	if c, ok := constants.MunicipalityCentroids[key]; ok {
		return c
	}
	if c, ok := constants.StateCentroids[jurisdiction]; ok {
		return c
	}
	return constants.Centroid{}
}

// parseMoney разбирает денежную строку фида ("$1,234,500", "1234500.00").
func parseMoney(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %f", v)
	}
	return v, nil
}
