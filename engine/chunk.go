package engine

import "github.com/corvaxen/grecurl/job"

// BuildSyntheticMetalink constructs a synthetic Metalink descriptor
// for a HEAD response whose Content-Length exceeds the configured
// chunk size: one mirror (the origin URL itself) and pieces cut at
// chunkSize boundaries.
func BuildSyntheticMetalink(originURL string, contentLength, chunkSize int64) *job.Metalink {
	m := &job.Metalink{
		Size:    contentLength,
		Mirrors: []job.Mirror{{URL: originURL, Priority: 1}},
	}
	var pos int64
	for pos < contentLength {
		length := chunkSize
		if pos+length > contentLength {
			length = contentLength - pos
		}
		m.Pieces = append(m.Pieces, job.Piece{Position: pos, Length: length})
		pos += length
	}
	return m
}

// DispatchParts populates j.Parts from j.Metalink's pieces, ready for
// workers to pick up via job.Part.TryAcquire.
func DispatchParts(j *job.Job) {
	j.Parts = make([]*job.Part, len(j.Metalink.Pieces))
	for i, piece := range j.Metalink.Pieces {
		j.Parts[i] = &job.Part{
			ID:       i,
			Position: piece.Position,
			Length:   piece.Length,
		}
	}
}
