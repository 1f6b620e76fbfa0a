package memory

import (
	"context"

	"impractical.co/resumable"
)

type Factory struct{}

func (f Factory) NewStorer(ctx context.Context) (resumable.Storer, error) {
	return NewStorer()
}

func (f Factory) TeardownStorers() error {
	return nil
}
