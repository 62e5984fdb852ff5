// Package loader streams a job's vectors and metadata into a search index.
//
// A load checks the job status gate, optionally recreates the target
// collection, resolves the job's memory-mapped vector file and lazy metadata
// table, verifies that their row counts agree, and uploads fixed-size chunks
// in increasing offset order. Uploads inside a chunk run in parallel. Point
// ids are absolute row offsets, so running a load again overwrites points
// instead of duplicating them.
//
// Index construction is disabled while chunks are uploaded and restored only
// after the last chunk succeeds. A failed load leaves it disabled.
//
// # Usage
//
//	l, err := loader.NewLoader(client, jobs, opener,
//	    loader.WithLogger(logger),
//	    loader.WithProgress(os.Stderr))
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	res, err := l.LoadVectors(ctx, jobID, "papers", loader.LoadOptions{})
//	if err != nil {
//	    return err
//	}
//	if res.Skipped {
//	    // job not completed yet
//	}
package loader
