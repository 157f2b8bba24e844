// Package pdb provides the minimal structure-text helpers the tool-backed
// validator needs. Structure files are otherwise treated as opaque text; only
// the fixed-column ATOM records documented here are interpreted.
package pdb

import (
	"errors"
	"strconv"
	"strings"
)

var ErrNoAtoms = errors.New("no CA atoms found")

var threeToOne = map[string]byte{
	"ALA": 'A', "CYS": 'C', "ASP": 'D', "GLU": 'E', "PHE": 'F',
	"GLY": 'G', "HIS": 'H', "ILE": 'I', "LYS": 'K', "LEU": 'L',
	"MET": 'M', "ASN": 'N', "PRO": 'P', "GLN": 'Q', "ARG": 'R',
	"SER": 'S', "THR": 'T', "VAL": 'V', "TRP": 'W', "TYR": 'Y',
}

// Point is a coordinate in the structure frame.
type Point struct {
	X, Y, Z float64
}

// CAlphaCenter returns the mean position of all CA atoms, used as the docking
// box center. ATOM records use PDB fixed columns: atom name at 13-16,
// coordinates at 31-38, 39-46, 47-54 (1-based).
func CAlphaCenter(text string) (Point, error) {
	var sum Point
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if !isCARecord(line) || len(line) < 54 {
			continue
		}
		x, errX := parseCoord(line[30:38])
		y, errY := parseCoord(line[38:46])
		z, errZ := parseCoord(line[46:54])
		if errX != nil || errY != nil || errZ != nil {
			continue
		}
		sum.X += x
		sum.Y += y
		sum.Z += z
		n++
	}
	if n == 0 {
		return Point{}, ErrNoAtoms
	}
	return Point{X: sum.X / float64(n), Y: sum.Y / float64(n), Z: sum.Z / float64(n)}, nil
}

// SequenceFromStructure walks CA records and converts residue names to
// one-letter symbols. Unknown residue names become 'X'.
func SequenceFromStructure(text string) (string, error) {
	type residue struct {
		num    int
		symbol byte
	}
	seen := make(map[int]byte)
	order := make([]int, 0, 256)
	for _, line := range strings.Split(text, "\n") {
		if !isCARecord(line) || len(line) < 26 {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(line[22:26]))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(line[17:20])
		symbol, ok := threeToOne[name]
		if !ok {
			symbol = 'X'
		}
		if _, exists := seen[num]; !exists {
			seen[num] = symbol
			order = append(order, num)
		}
	}
	if len(order) == 0 {
		return "", ErrNoAtoms
	}
	// residue numbers may arrive out of order across chains
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j] < order[j-1]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	var b strings.Builder
	for _, num := range order {
		b.WriteByte(seen[num])
	}
	return b.String(), nil
}

// ToPDBQT rewrites ATOM/HETATM records into the rigid-receptor PDBQT layout:
// columns 1-66 preserved, default +0.00 partial charge, atom type derived from
// the element field or the atom name.
func ToPDBQT(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "ATOM") && !strings.HasPrefix(line, "HETATM") {
			continue
		}
		clean := line
		if len(clean) > 66 {
			clean = clean[:66]
		}
		clean = pad(clean, 70) + " +0.00 "

		element := ""
		if len(line) >= 78 {
			element = strings.TrimSpace(line[76:78])
		}
		if element == "" && len(line) >= 16 {
			for _, r := range strings.TrimSpace(line[12:16]) {
				if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
					element = string(r)
					break
				}
			}
		}
		if element == "" {
			element = "C"
		}
		atomType := strings.ToUpper(element)
		if len(atomType) > 2 {
			atomType = atomType[:2]
		}
		out = append(out, clean+pad(atomType, 2))
	}
	return strings.Join(out, "\n")
}

func isCARecord(line string) bool {
	return strings.HasPrefix(line, "ATOM") && len(line) >= 16 && strings.TrimSpace(line[12:16]) == "CA"
}

func parseCoord(field string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(field), 64)
}

func pad(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s
}
