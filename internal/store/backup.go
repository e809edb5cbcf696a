package store

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// allBuckets lists every collection bucket name, used by Backup/Restore.
func (s *Store) allBuckets() [][]byte {
	var out [][]byte
	s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, append([]byte(nil), name...))
			return nil
		})
	})
	return out
}

// Backup writes one gzip-compressed JSON-lines file per collection bucket
// under dir/<UTC timestamp as 20060102T150405Z>/, per spec §6: "Backups
// are per-collection gzip-compressed JSON-lines files under a timestamped
// directory."
func (s *Store) Backup(dir string, now time.Time) (string, error) {
	stamp := now.UTC().Format("20060102T150405Z")
	outDir := filepath.Join(dir, stamp)
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return "", fmt.Errorf("mkdir backup dir: %w", err)
	}

	for _, bucket := range s.allBuckets() {
		if err := s.backupBucket(outDir, bucket); err != nil {
			return "", fmt.Errorf("backup bucket %s: %w", bucket, err)
		}
	}
	return outDir, nil
}

func (s *Store) backupBucket(outDir string, bucket []byte) error {
	path := filepath.Join(outDir, string(bucket)+".jsonl.gz")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	w := bufio.NewWriter(gz)
	defer w.Flush()

	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			if _, err := w.Write(v); err != nil {
				return err
			}
			return w.WriteByte('\n')
		})
	})
}

// Restore bulk-upserts every JSON-line in each per-collection gzip file
// under dir back into its bucket, keyed by the document's "id" field —
// "restore is bulk upsert on _id" (spec §6). Unknown bucket files are
// skipped rather than erroring, so a restore from a superset of
// collections (e.g. an older backup with a dropped bucket) still applies.
func (s *Store) Restore(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read backup dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		bucketName := bucketNameFromBackupFile(e.Name())
		if bucketName == "" {
			continue
		}
		if err := s.restoreBucketFile(filepath.Join(dir, e.Name()), []byte(bucketName)); err != nil {
			return fmt.Errorf("restore %s: %w", e.Name(), err)
		}
	}
	return nil
}

func bucketNameFromBackupFile(name string) string {
	const suffix = ".jsonl.gz"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return ""
	}
	return name[:len(name)-len(suffix)]
}

func (s *Store) restoreBucketFile(path string, bucket []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			b, err = tx.CreateBucket(bucket)
			if err != nil {
				return err
			}
		}
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			id, err := extractID(line)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), append([]byte(nil), line...)); err != nil {
				return err
			}
		}
		return scanner.Err()
	})
}

func extractID(line []byte) (string, error) {
	var probe struct {
		Id   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return "", err
	}
	if probe.Id != "" {
		return probe.Id, nil
	}
	return probe.Name, nil
}
