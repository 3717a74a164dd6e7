package main

import (
	"context"

	"captioner/internal/pipeline"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, pipeline.Upload) (pipeline.Result, error) {
	return pipeline.Result{}, nil
}
