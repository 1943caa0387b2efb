package segment

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// epubContainer models META-INF/container.xml, which points at the
// package document.
type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// epubPackage models the OPF package document: the manifest maps item
// IDs to files, the spine gives reading order.
type epubPackage struct {
	Metadata struct {
		Title string `xml:"title"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// spineDoc is one content document in reading order.
type spineDoc struct {
	title string
	text  string
}

// readEPUB opens an EPUB archive and extracts every spine document in
// reading order.
func readEPUB(archivePath string) ([]spineDoc, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := findOPF(files)
	if err != nil {
		return nil, err
	}

	var pkg epubPackage
	if err := decodeZipXML(files, opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest.Items))
	navIDs := make(map[string]bool)
	for _, item := range pkg.Manifest.Items {
		hrefs[item.ID] = item.Href
		if strings.Contains(item.Properties, "nav") {
			navIDs[item.ID] = true
		}
	}

	opfDir := path.Dir(opfPath)
	var docs []spineDoc
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.Linear == "no" || navIDs[ref.IDRef] {
			continue
		}
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := files[resolveZipPath(opfDir, href)]
		if !ok {
			continue
		}
		doc, err := readSpineDoc(f)
		if err != nil {
			continue
		}
		if strings.TrimSpace(doc.text) != "" {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}

func findOPF(files map[string]*zip.File) (string, error) {
	var c epubContainer
	if err := decodeZipXML(files, "META-INF/container.xml", &c); err != nil {
		return "", fmt.Errorf("failed to parse EPUB container: %w", err)
	}
	for _, rf := range c.Rootfiles {
		if rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}
	return "", fmt.Errorf("EPUB container lists no package document")
}

func decodeZipXML(files map[string]*zip.File, name string, v interface{}) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// resolveZipPath resolves a manifest href relative to the OPF
// directory, normalizing to the forward-slash paths zip archives use.
func resolveZipPath(dir, href string) string {
	if dir == "." || dir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(dir, href))
}

// readSpineDoc parses one XHTML content document, pulling out its
// heading (for a chapter title) and body text.
func readSpineDoc(f *zip.File) (spineDoc, error) {
	rc, err := f.Open()
	if err != nil {
		return spineDoc{}, err
	}
	defer rc.Close()
	return parseSpineHTML(rc)
}

func parseSpineHTML(r io.Reader) (spineDoc, error) {
	root, err := html.Parse(r)
	if err != nil {
		return spineDoc{}, err
	}

	var doc spineDoc
	var blocks []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "h1", "h2", "h3":
				if doc.title == "" {
					doc.title = strings.TrimSpace(nodeText(n))
				}
			case "p", "li", "blockquote", "h4", "h5", "h6":
				if t := strings.TrimSpace(nodeText(n)); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	doc.text = strings.Join(blocks, "\n\n")
	return doc, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// ExtractEPUB extracts the full text of an EPUB in spine order.
func ExtractEPUB(path string) (string, error) {
	docs, err := readEPUB(path)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractChaptersEPUB treats each spine document as a chapter
// candidate, merging undersized documents into their neighbor the way
// publishers split title pages and dedications into tiny files.
func extractChaptersEPUB(archivePath string) ([]Chapter, string, error) {
	docs, err := readEPUB(archivePath)
	if err != nil {
		return nil, "", err
	}

	var chapters []Chapter
	chapterNum := 0
	for i, d := range docs {
		wc := WordCount(d.text)
		if wc < MinWordsPerChapter && len(chapters) > 0 {
			prev := &chapters[len(chapters)-1]
			prev.Text = prev.Text + "\n\n" + d.text
			prev.WordCount = WordCount(prev.Text)
			continue
		}

		title := d.title
		st := SectionChapter
		num := 0
		if title != "" {
			st, num, title = classifyHeading(title, true)
		} else {
			title = fmt.Sprintf("Section %d", i+1)
		}
		if st == SectionChapter {
			if num == 0 {
				chapterNum++
				num = chapterNum
			} else {
				chapterNum = num
			}
		}

		chapters = append(chapters, Chapter{
			SectionType:   st,
			ChapterNumber: num,
			Title:         title,
			Text:          d.text,
			WordCount:     wc,
		})
	}
	if len(chapters) == 0 {
		return nil, "", ErrNoText
	}

	reindex(chapters)
	assignLabels(chapters)
	return chapters, MethodEPUBSpine, nil
}
