package repo

// Verify counts files and missing chunks across one snapshot (or all
// snapshots when id is empty). This is a storage presence check only:
// it does not decrypt chunks or validate their integrity. The returned
// error covers only manifest access problems; missing chunks are
// reported through the count.
func (r *Repo) Verify(id string) (files, missingChunks int, err error) {
	var ids []string
	if id != "" {
		ids = []string{id}
	} else {
		ids, err = r.ListSnapshots()
		if err != nil {
			return 0, 0, err
		}
	}

	for _, sid := range ids {
		snap, err := r.LoadSnapshot(sid)
		if err != nil {
			return files, missingChunks, err
		}
		files += len(snap.Files)
		for _, fe := range snap.Files {
			for _, hash := range fe.Chunks {
				if !r.store.Has(hash) {
					missingChunks++
				}
			}
		}
	}
	return files, missingChunks, nil
}
