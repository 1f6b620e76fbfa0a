package resumable_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	"impractical.co/resumable"
	"impractical.co/resumable/disk"
	"impractical.co/resumable/memory"
	yall "yall.in"
	"yall.in/colour"
)

type Factory interface {
	NewStorer(ctx context.Context) (resumable.Storer, error)
	TeardownStorers() error
}

var factories []Factory

func TestMain(m *testing.M) {
	flag.Parse()

	// set up our test storers
	factories = append(factories, memory.Factory{}, &disk.Factory{})

	// run the tests
	result := m.Run()

	// tear down all the storers we created
	for _, factory := range factories {
		err := factory.TeardownStorers()
		if err != nil {
			log.Printf("Error cleaning up after %T: %+v\n", factory, err)
		}
	}

	// return the test result
	os.Exit(result)
}

// env is one assembler under test plus direct handles on its backends, so
// tests can observe what the assembler did to storage.
type env struct {
	assembler *resumable.Assembler
	chunks    resumable.Storer
	files     resumable.Storer
}

func runTest(t *testing.T, f func(*testing.T, env, context.Context)) {
	t.Parallel()
	logger := yall.New(colour.New(os.Stdout, yall.Debug))
	for _, factory := range factories {
		ctx := yall.InContext(context.Background(), logger)
		chunks, err := factory.NewStorer(ctx)
		if err != nil {
			t.Fatalf("Error creating chunk Storer from %T: %+v\n", factory, err)
		}
		files, err := factory.NewStorer(ctx)
		if err != nil {
			t.Fatalf("Error creating file Storer from %T: %+v\n", factory, err)
		}
		e := env{
			assembler: resumable.New(resumable.Config{
				Chunks:   chunks,
				Files:    files,
				UploadTo: resumable.UploadTo("uploads"),
			}),
			chunks: chunks,
			files:  files,
		}
		t.Run(fmt.Sprintf("Storer=%T", chunks), func(t *testing.T) {
			t.Parallel()
			f(t, e, ctx)
		})
	}
}

// sendChunk stores data as chunk number num of the session described by p.
func sendChunk(t *testing.T, ctx context.Context, e env, p resumable.Params, num int, data string) {
	t.Helper()
	p.ChunkNumber = num
	p.CurrentChunkSize = int64(len(data))
	err := e.assembler.ProcessChunk(ctx, p, strings.NewReader(data))
	if err != nil {
		t.Fatalf("Unexpected error storing chunk %d: %+v", num, err)
	}
}
