package credits

import (
	"fmt"
	"strings"
)

// Feature tags the generation action a usage record was charged for.
type Feature string

const (
	FeatureReviewReply    Feature = "review_reply"
	FeatureCaption        Feature = "caption"
	FeatureChat           Feature = "chat"
	FeatureTranslation    Feature = "translation"
	FeatureEmailMarketing Feature = "email_marketing"
	FeatureScript         Feature = "script"
	FeatureImageAnalysis  Feature = "image_analysis"
	FeatureReport         Feature = "report"
	FeatureReviewInsights Feature = "review_insights"
	FeatureBusinessPlan   Feature = "business_plan"
)

var costTable = map[Feature]int{
	FeatureReviewReply:    1,
	FeatureCaption:        1,
	FeatureChat:           1,
	FeatureTranslation:    1,
	FeatureEmailMarketing: 1,
	FeatureScript:         3,
	FeatureImageAnalysis:  5,
	FeatureReport:         5,
	FeatureReviewInsights: 5,
	FeatureBusinessPlan:   10,
}

// CostOf returns the fixed credit cost of a feature.
func CostOf(f Feature) (int, error) {
	cost, ok := costTable[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, string(f))
	}
	return cost, nil
}

// ParseFeature normalizes a feature tag and checks it against the cost table.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if _, err := CostOf(f); err != nil {
		return "", err
	}
	return f, nil
}

// Features lists every priced feature.
func Features() []Feature {
	out := make([]Feature, 0, len(costTable))
	for f := range costTable {
		out = append(out, f)
	}
	return out
}
