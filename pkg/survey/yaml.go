package survey

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

// ParseYAML reads hand-written survey rows, a top-level list of
// {period, reference, median} mappings. It is handy for what-if runs.
func (r *Reader) ParseYAML(data []byte) ([]models.SurveyRow, error) {
	var rows []models.SurveyRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	for i := range rows {
		rows[i].Period = NormalizePeriod(rows[i].Period)
	}
	r.logger.Debug("parsed yaml survey", "rows", len(rows))
	return rows, nil
}
