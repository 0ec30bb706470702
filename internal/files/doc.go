// Package files moves and copies files between the data directories, and its
// sub-packages read them:
//   - source: opening CSV files with decompression, decoding and header parsing
//
// # Usage
//
//	src, err := source.Open(path, source.Options{Encoding: "cp932"})
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	if err := files.MoveFile(path, filepath.Join(archiveRoot, rel)); err != nil {
//	    return err
//	}
package files
