// Package archive implements the on-disk backup archive format: an outer
// gzip-compressed tar holding a nested data-root snapshot, a nested
// system-configuration snapshot, a plain-text manifest, and static restore
// instructions.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pgzip "github.com/klauspost/pgzip"
)

// Top-level member names. The set and the names are a wire contract;
// verification and restore both key off them.
const (
	MemberData         = "hub-data.tar.gz"
	MemberSystem       = "system-essentials.tar.gz"
	MemberManifest     = "BACKUP_INFO.txt"
	MemberInstructions = "RESTORE_INSTRUCTIONS.txt"
)

// Pack assembles the outer archive at path from member files staged in
// stagingDir. Members are written in the given order.
func Pack(path, stagingDir string, members []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, name := range members {
		if err := packOne(tw, filepath.Join(stagingDir, name), name); err != nil {
			tw.Close()
			gz.Close()
			out.Close()
			return fmt.Errorf("pack %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func packOne(tw *tar.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Inspection is the result of stream-reading an archive end to end.
type Inspection struct {
	Decompressible bool
	Members        map[string]bool
	Err            error
}

// Complete reports whether the archive holds everything a restore needs:
// the data-root snapshot and the manifest.
func (i Inspection) Complete() bool {
	return i.Decompressible && i.Members[MemberData] && i.Members[MemberManifest]
}

// Inspect reads the whole archive, recording whether it decompresses
// cleanly and which top-level members it contains. Truncated or corrupt
// archives come back with Decompressible == false.
func Inspect(path string) Inspection {
	insp := Inspection{Members: map[string]bool{}}
	f, err := os.Open(path)
	if err != nil {
		insp.Err = err
		return insp
	}
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	if err != nil {
		insp.Err = err
		return insp
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			insp.Err = err
			return insp
		}
		insp.Members[hdr.Name] = true
		if _, err := io.Copy(io.Discard, tr); err != nil {
			insp.Err = err
			return insp
		}
	}
	insp.Decompressible = true
	return insp
}

// ExtractMember streams one top-level member out of the archive into dest.
func ExtractMember(path, member, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip %s: %w", path, err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("member %s not found in %s", member, path)
		}
		if err != nil {
			return fmt.Errorf("tar %s: %w", path, err)
		}
		if hdr.Name != member {
			continue
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}
}
