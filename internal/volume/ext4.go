// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package volume

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsoprea/go-ext4"
)

// Ext4 is a Volume backed by an ext4 file system partition.
type Ext4 struct {
	r io.ReadSeeker
}

// NewExt4 returns a volume reading the ext4 file system stored in the size
// bytes of r starting at offset.
func NewExt4(r io.ReaderAt, offset, size int64) *Ext4 {
	return &Ext4{r: io.NewSectionReader(r, offset, size)}
}

// OpenExt4Image opens the ext4 partition at offset in the image file path.
// The returned closer releases the underlying file.
func OpenExt4Image(path string, offset int64) (*Ext4, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if offset < 0 || offset >= fi.Size() {
		f.Close()
		return nil, nil, fmt.Errorf("partition offset %d outside image of %d bytes", offset, fi.Size())
	}
	return NewExt4(f, offset, fi.Size()-offset), f, nil
}

func (p *Ext4) getBlockGroupDescriptor(inode int) (*ext4.BlockGroupDescriptor, error) {
	if _, err := p.r.Seek(ext4.Superblock0Offset, io.SeekStart); err != nil {
		return nil, err
	}

	sb, err := ext4.NewSuperblockWithReader(p.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	bgdl, err := ext4.NewBlockGroupDescriptorListWithReadSeeker(p.r, sb)
	if err != nil {
		return nil, fmt.Errorf("failed to read block group descriptors: %w", err)
	}

	return bgdl.GetWithAbsoluteInode(inode)
}

// ReadAll returns the contents of the file at fullPath.
func (p *Ext4) ReadAll(fullPath string) ([]byte, error) {
	want := clean(fullPath)

	bgd, err := p.getBlockGroupDescriptor(ext4.InodeRootDirectory)
	if err != nil {
		return nil, err
	}

	dw, err := ext4.NewDirectoryWalk(p.r, bgd, ext4.InodeRootDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory: %w", err)
	}

	for {
		name, de, err := dw.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("failed to read %q: %w", fullPath, os.ErrNotExist)
		} else if err != nil {
			return nil, err
		}

		if strings.TrimPrefix(name, "/") != want {
			continue
		}

		inodeNumber := int(de.Data().Inode)
		bgd, err := p.getBlockGroupDescriptor(inodeNumber)
		if err != nil {
			return nil, err
		}

		inode, err := ext4.NewInodeWithReadSeeker(bgd, p.r, inodeNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to read inode %d: %w", inodeNumber, err)
		}

		en := ext4.NewExtentNavigatorWithReadSeeker(p.r, inode)
		return io.ReadAll(ext4.NewInodeReader(en))
	}
}
