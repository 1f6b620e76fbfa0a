package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	memdb "github.com/hashicorp/go-memdb"
	"impractical.co/resumable"
)

var _ resumable.Storer = &Storer{}

var (
	schema = &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"blob": &memdb.TableSchema{
				Name: "blob",
				Indexes: map[string]*memdb.IndexSchema{
					"id": &memdb.IndexSchema{
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}
)

type blob struct {
	Name     string
	Contents []byte
}

// Storer is an in-memory implementation of resumable.Storer backed by
// go-memdb. Saving under a name that's already stored replaces the stored
// contents.
type Storer struct {
	db *memdb.MemDB
}

func NewStorer() (*Storer, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Storer{
		db: db,
	}, nil
}

func (s *Storer) Exists(ctx context.Context, name string) (bool, error) {
	txn := s.db.Txn(false)
	res, err := txn.First("blob", "id", name)
	if err != nil {
		return false, err
	}
	return res != nil, nil
}

func (s *Storer) Size(ctx context.Context, name string) (int64, error) {
	txn := s.db.Txn(false)
	res, err := txn.First("blob", "id", name)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, resumable.ErrFileNotFound
	}
	return int64(len(res.(*blob).Contents)), nil
}

func (s *Storer) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	txn := s.db.Txn(false)
	res, err := txn.First("blob", "id", name)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, resumable.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(res.(*blob).Contents)), nil
}

func (s *Storer) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	contents, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("error reading data for %s: %w", name, err)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	// Insert replaces any blob already stored under name
	err = txn.Insert("blob", &blob{Name: name, Contents: contents})
	if err != nil {
		return "", err
	}
	txn.Commit()
	return name, nil
}

func (s *Storer) Delete(ctx context.Context, name string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	exists, err := txn.First("blob", "id", name)
	if err != nil {
		return err
	}
	if exists == nil {
		return nil
	}
	err = txn.Delete("blob", exists)
	if err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Storer) List(ctx context.Context, prefix string) ([]string, error) {
	txn := s.db.Txn(false)
	it, err := txn.Get("blob", "id_prefix", prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for res := it.Next(); res != nil; res = it.Next() {
		names = append(names, res.(*blob).Name)
	}
	sort.Strings(names)
	return names, nil
}
