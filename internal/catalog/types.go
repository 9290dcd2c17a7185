package catalog

import "encoding/xml"

// listBucketResult is the S3 ListObjects (v1) response body. Element names are
// matched without the s3 namespace.
type listBucketResult struct {
	XMLName        xml.Name       `xml:"ListBucketResult"`
	Prefix         string         `xml:"Prefix"`
	Marker         string         `xml:"Marker"`
	NextMarker     string         `xml:"NextMarker"`
	IsTruncated    bool           `xml:"IsTruncated"`
	Contents       []object       `xml:"Contents"`
	CommonPrefixes []commonPrefix `xml:"CommonPrefixes"`
}

type object struct {
	Key  string `xml:"Key"`
	Size int64  `xml:"Size"`
}

type commonPrefix struct {
	Prefix string `xml:"Prefix"`
}

func (r *listBucketResult) keys() []string {
	out := make([]string, len(r.Contents))
	for i, c := range r.Contents {
		out[i] = c.Key
	}
	return out
}

func (r *listBucketResult) prefixes() []string {
	out := make([]string, len(r.CommonPrefixes))
	for i, p := range r.CommonPrefixes {
		out[i] = p.Prefix
	}
	return out
}
