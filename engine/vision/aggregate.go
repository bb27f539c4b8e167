package vision

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/fn"
)

// Analyzer runs damage detection and aggregates regions into a claim-level
// verdict on the visual evidence.
type Analyzer struct {
	detector Detector
	log      *slog.Logger
}

func NewAnalyzer(detector Detector, log *slog.Logger) *Analyzer {
	return &Analyzer{detector: detector, log: log}
}

// Analyze detects damage in the given images and aggregates the findings.
// Paths that are empty strings are skipped. An error from the detector is
// returned as-is so the caller can degrade to inconclusive findings.
func (a *Analyzer) Analyze(ctx context.Context, imagePaths []string) (domain.ImageFindings, error) {
	valid := fn.Filter(imagePaths, func(p string) bool { return p != "" })
	if len(valid) == 0 {
		return domain.InconclusiveFindings("no valid image paths provided"), nil
	}

	images, err := a.detector.Detect(ctx, valid)
	if err != nil {
		return domain.ImageFindings{}, err
	}

	a.log.Debug("damage detection complete", "images", len(images))
	return Aggregate(len(valid), images), nil
}

// Aggregate folds per-image detections into one claim-level finding.
// Severity is MAJOR if any region carries a major damage type. Evidence
// strength grows with the number of damaged regions, consistency shrinks
// with the number of distinct damage types.
func Aggregate(totalImages int, images []ImageDetections) domain.ImageFindings {
	var regions []Region
	var annotated []string
	for _, img := range images {
		if len(img.Findings) == 0 {
			continue
		}
		regions = append(regions, img.Findings...)
		if img.AnnotatedPath != "" {
			annotated = append(annotated, img.AnnotatedPath)
		}
	}

	if len(regions) == 0 {
		return domain.ImageFindings{
			DamageDetected:   false,
			Severity:         domain.SeverityNone,
			Confidence:       0,
			EvidenceStrength: domain.EvidenceNone,
			DamageTypes:      []string{},
			Claimability:     domain.NotClaimable,
			Reasoning:        []string{"No visual damage detected"},
			AnnotatedImages:  []string{},
			Details: &domain.FindingsDetails{
				TotalImages: totalImages,
			},
		}
	}

	distribution := make(map[string]int)
	var confidenceSum float64
	hasMajor, hasScratch, hasDent := false, false, false
	onlyMinor := true
	worst := regions[0].Type
	for _, r := range regions {
		distribution[r.Type]++
		confidenceSum += r.Confidence
		major := strings.Contains(r.Type, "major")
		if major && !hasMajor {
			hasMajor = true
			worst = r.Type
		}
		if !strings.Contains(r.Type, "minor") {
			onlyMinor = false
		}
		if strings.Contains(r.Type, "scratch") {
			hasScratch = true
		}
		if strings.Contains(r.Type, "dent") {
			hasDent = true
		}
	}
	avgConf := confidenceSum / float64(len(regions))

	severity := domain.SeverityMinor
	if hasMajor {
		severity = domain.SeverityMajor
	}

	evidence := domain.EvidenceStrong
	switch {
	case len(regions) == 1:
		evidence = domain.EvidenceWeak
	case len(regions) <= 4:
		evidence = domain.EvidenceMedium
	}

	consistency := "LOW"
	switch {
	case len(distribution) == 1:
		consistency = "HIGH"
	case len(distribution) <= 3:
		consistency = "MEDIUM"
	}

	claimability := domain.Claimable
	claimReason := "Mixed damage types detected"
	switch {
	case hasMajor:
		claimReason = "Major structural damage detected"
	case onlyMinor && hasScratch && hasDent:
		claimReason = "Multiple minor damage types detected"
	case onlyMinor:
		claimability = domain.NotClaimable
		claimReason = "Only small scratches/dents detected"
	}

	var reasoning []string
	if hasMajor {
		reasoning = append(reasoning, "Major damage detected")
	}
	if len(distribution) > 1 {
		reasoning = append(reasoning, "Multiple damage types observed")
	}
	switch {
	case avgConf > 0.75:
		reasoning = append(reasoning, "High confidence predictions")
	case avgConf > 0.5:
		reasoning = append(reasoning, "Moderate confidence predictions")
	default:
		reasoning = append(reasoning, "Low confidence predictions")
	}
	if evidence == domain.EvidenceMedium || evidence == domain.EvidenceStrong {
		reasoning = append(reasoning, "Sufficient visual evidence")
	} else {
		reasoning = append(reasoning, "Limited visual evidence")
	}

	// Distinct cleaned type names, first occurrence order.
	cleanTypes := fn.Unique(fn.Map(regions, func(r Region) string {
		return strings.TrimPrefix(strings.TrimPrefix(r.Type, "minor_"), "major_")
	}))

	return domain.ImageFindings{
		DamageDetected:        true,
		Severity:              severity,
		Confidence:            round3(avgConf),
		EvidenceStrength:      evidence,
		DamageTypes:           cleanTypes,
		WorstDamage:           worst,
		PredictionConsistency: consistency,
		Claimability:          claimability,
		ClaimReason:           claimReason,
		Reasoning:             reasoning,
		AnnotatedImages:       annotated,
		Details: &domain.FindingsDetails{
			TotalImages:    totalImages,
			DamagedRegions: len(regions),
			Distribution:   distribution,
		},
	}
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
