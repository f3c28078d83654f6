package submission

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var reviewFolder = regexp.MustCompile(`^review-(\d+)$`)

// NextFromFolders returns one more than the highest review-<n> folder, or 1 when there is none
func NextFromFolders(names []string) int {
	highest := 0
	for _, name := range names {
		m := reviewFolder.FindStringSubmatch(strings.TrimSuffix(name, "/"))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}

// CompanyFolder is the storage prefix of a company's attachments
func CompanyFolder(companyID string) string {
	return "company-" + companyID
}

// ReviewFolder is the storage prefix of one review's attachments
func ReviewFolder(companyID string, number int) string {
	return fmt.Sprintf("%s/review-%d", CompanyFolder(companyID), number)
}

// ObjectPath builds company-<id>/review-<n>/<slot>/<file>
func ObjectPath(companyID string, number int, slot Slot, filename string) string {
	return path.Join(ReviewFolder(companyID, number), slot.Folder(), safeFilename(filename))
}

func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
