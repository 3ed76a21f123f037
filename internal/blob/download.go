package blob

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DownloadToFile streams key from the store directly into localPath
// without fully buffering it in memory, satisfying spec.md §4.2's
// requirement that video downloads stream rather than buffer.
func DownloadToFile(ctx context.Context, store Store, key, localPath string) error {
	r, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("blob: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("blob: download %s to %s: %w", key, localPath, err)
	}
	return nil
}

// UploadFile uploads the file at localPath under key with the given
// content type, handing the open file and its size to Store.Put, which
// may buffer it in memory — acceptable for this pipeline's small
// audio/subtitle artifacts (spec.md §4.2).
func UploadFile(ctx context.Context, store Store, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("blob: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("blob: stat %s: %w", localPath, err)
	}

	if err := store.Put(ctx, key, f, info.Size(), contentType); err != nil {
		return err
	}
	return nil
}
