package awsutil

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Object key layout:
//
//	photos/{assessmentId}/image_NNN.<ext>   original uploads
//	prepared/{assessmentId}/image_NNN.jpg  downscaled JPEGs sent to the model
//	exports/{assessmentId}/report.txt      text export of the latest report
const (
	PhotosPrefix   = "photos/"
	PreparedPrefix = "prepared/"
	ExportsPrefix  = "exports/"
)

// PhotoKey is the upload key of image n.
func PhotoKey(assessmentID string, n int, ext string) string {
	return fmt.Sprintf("%s%s/image_%03d%s", PhotosPrefix, assessmentID, n, strings.ToLower(ext))
}

// PreparedKey is the key of the prepared JPEG of image n.
func PreparedKey(assessmentID string, n int) string {
	return fmt.Sprintf("%s%s/image_%03d.jpg", PreparedPrefix, assessmentID, n)
}

// ExportKey is the key of the text export of an assessment's report.
func ExportKey(assessmentID string) string {
	return ExportsPrefix + assessmentID + "/report.txt"
}

// ParsePhotoKey extracts the assessment id and image number from an upload
// key. ok is false for keys outside the photos/ layout.
func ParsePhotoKey(key string) (assessmentID string, n int, ok bool) {
	rest, found := strings.CutPrefix(key, PhotosPrefix)
	if !found {
		return "", 0, false
	}
	id, file, found := strings.Cut(rest, "/")
	if !found || id == "" || strings.Contains(file, "/") {
		return "", 0, false
	}
	num, found := strings.CutPrefix(strings.TrimSuffix(file, path.Ext(file)), "image_")
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return id, n, true
}
