// Package catalog holds the batik motifs the model was trained on and
// turns raw model scores into a ranked prediction list.
package catalog

import (
	"fmt"
	"sort"
)

// Class is one label the model can emit.
type Class struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Prediction pairs a class with the confidence the model assigned to it.
type Prediction struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Link       string  `json:"link"`
}

// Order matches the model's output vector.
var batikClasses = []Class{
	{Name: "Batik Parang", Link: "#"},
	{Name: "Batik Sidoasih", Link: "#"},
	{Name: "Batik Sidomukti", Link: "#"},
	{Name: "Batik Truntum", Link: "#"},
}

// BatikClasses returns a copy of the known labels in model output order.
func BatikClasses() []Class {
	out := make([]Class, len(batikClasses))
	copy(out, batikClasses)
	return out
}

// Rank pairs scores[i] with classes[i] and sorts the result by confidence,
// highest first. Equal confidences keep label order. Scores beyond the
// number of classes are ignored.
func Rank(classes []Class, scores []float32) ([]Prediction, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes configured")
	}
	if len(scores) < len(classes) {
		return nil, fmt.Errorf("model returned %d scores for %d classes", len(scores), len(classes))
	}

	predictions := make([]Prediction, len(classes))
	for i, class := range classes {
		predictions[i] = Prediction{
			Name:       class.Name,
			Confidence: float64(scores[i]),
			Link:       class.Link,
		}
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	return predictions, nil
}
