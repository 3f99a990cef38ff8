package incremental

import "sync"

// DependencyTracker records which source files contributed declarations
// to which dispatch-table signature hashes, so a file-change event can be
// turned into a precise set of signatures to regenerate rather than a
// full rebuild.
type DependencyTracker struct {
	mu sync.RWMutex
	// fileToSignatures maps a source file path to the signature hashes
	// declared (in whole or in part) in that file.
	fileToSignatures map[string]map[uint64]struct{}
	// signatureToFiles is the inverse index, used to report a
	// signature's full dependency set.
	signatureToFiles map[uint64]map[string]struct{}
	tableHash        map[uint64]string // signature hash -> last-known cache content hash
}

// NewDependencyTracker creates an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		fileToSignatures: make(map[string]map[uint64]struct{}),
		signatureToFiles: make(map[uint64]map[string]struct{}),
		tableHash:        make(map[uint64]string),
	}
}

// Record associates a signature hash with a contributing source file.
func (d *DependencyTracker) Record(file string, signatureHash uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fileToSignatures[file] == nil {
		d.fileToSignatures[file] = make(map[uint64]struct{})
	}
	d.fileToSignatures[file][signatureHash] = struct{}{}

	if d.signatureToFiles[signatureHash] == nil {
		d.signatureToFiles[signatureHash] = make(map[string]struct{})
	}
	d.signatureToFiles[signatureHash][file] = struct{}{}
}

// SetCachedHash records the disk-cache content hash currently backing a
// signature's generated table, so a later regeneration can evict the
// stale entry.
func (d *DependencyTracker) SetCachedHash(signatureHash uint64, contentHash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tableHash[signatureHash] = contentHash
}

// CachedHash returns the last-known disk-cache content hash for a
// signature, if any.
func (d *DependencyTracker) CachedHash(signatureHash uint64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.tableHash[signatureHash]
	return h, ok
}

// AffectedSignatures returns every signature hash that depends, directly
// or indirectly through file membership, on any of the changed files.
func (d *DependencyTracker) AffectedSignatures(changedFiles []string) []uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[uint64]struct{})
	for _, f := range changedFiles {
		for sig := range d.fileToSignatures[f] {
			seen[sig] = struct{}{}
		}
	}

	out := make([]uint64, 0, len(seen))
	for sig := range seen {
		out = append(out, sig)
	}
	return out
}

// Files returns the source files a signature depends on.
func (d *DependencyTracker) Files(signatureHash uint64) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.signatureToFiles[signatureHash]))
	for f := range d.signatureToFiles[signatureHash] {
		out = append(out, f)
	}
	return out
}

// LiveHashes returns the disk-cache content hashes currently backing a
// live signature, the keep-set a `cache gc` sweep must not evict.
func (d *DependencyTracker) LiveHashes() map[string]struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	live := make(map[string]struct{}, len(d.tableHash))
	for _, h := range d.tableHash {
		live[h] = struct{}{}
	}
	return live
}

// Forget drops all bookkeeping for a file, used when it is deleted.
func (d *DependencyTracker) Forget(file string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sig := range d.fileToSignatures[file] {
		delete(d.signatureToFiles[sig], file)
		if len(d.signatureToFiles[sig]) == 0 {
			delete(d.signatureToFiles, sig)
		}
	}
	delete(d.fileToSignatures, file)
}
