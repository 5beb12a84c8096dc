package main

import (
	"github.com/MaxiNavarro97/proyectAR/pkg/models"
	"github.com/MaxiNavarro97/proyectAR/pkg/sink"
)

type filters struct {
	from string
	to   string
}

func (f *filters) toFilterFunc() (sink.FilterFunc, error) {
	return sink.Range{From: f.from, To: f.to}.Filter()
}

func applyFilter(series models.Series, filter sink.FilterFunc) models.Series {
	if filter == nil {
		return series
	}
	out := make(models.Series, 0, len(series))
	for _, e := range series {
		if filter(e) {
			out = append(out, e)
		}
	}
	return out
}
