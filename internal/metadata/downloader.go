package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"

	"stexport/internal/errors"
	"stexport/internal/logger"
)

const DefaultNugetIndex string = "https://api.nuget.org/v3/index.json"

// Downloader fetches an assembly out of a NuGet package.
type Downloader struct {
	// IndexURL is the NuGet v3 service index. Defaults to DefaultNugetIndex.
	IndexURL string
	Client   *http.Client
	Fs       afero.Fs
}

// NewDownloader returns a Downloader for the public NuGet feed writing to
// the OS filesystem.
func NewDownloader() *Downloader {
	return &Downloader{
		IndexURL: DefaultNugetIndex,
		Client:   http.DefaultClient,
		Fs:       afero.NewOsFs(),
	}
}

// DownloadPackage downloads the package with the given id and writes its
// first metadata-bearing file (a .winmd, else a lib/ .dll) to
// destination. An empty packageVersion selects the highest published
// version. Returns the version that was downloaded.
func (downloader *Downloader) DownloadPackage(ctx context.Context, packageID string, packageVersion string, destination string) (string, error) {
	log := logger.Named("nuget")
	packageID = strings.ToLower(packageID)

	baseAddress, err := downloader.getBaseAddress(ctx)
	if err != nil {
		return "", err
	}

	if packageVersion == "" {
		packageVersion, err = downloader.latestVersion(ctx, baseAddress, packageID)
		if err != nil {
			return "", err
		}
	}
	packageVersion = strings.ToLower(packageVersion)

	url := fmt.Sprintf("%s%s/%s/%s.%s.nupkg", baseAddress, packageID, packageVersion, packageID, packageVersion)
	log.Infow("Downloading package", logger.FieldPackage, packageID, logger.FieldVersion, packageVersion, logger.FieldURL, url)
	nugetBytes, err := downloader.queryGet(ctx, url)
	if err != nil {
		return "", err
	}

	bytesReader := bytes.NewReader(nugetBytes)
	nuget, err := zip.NewReader(bytesReader, int64(bytesReader.Len()))
	if err != nil {
		return "", errors.Wrapf(err, "opening package %s %s", packageID, packageVersion)
	}

	file := findMetadataFile(nuget.File)
	if file == nil {
		return "", errors.Newf("package %s %s contains no .winmd or lib/ .dll file", packageID, packageVersion)
	}

	reader, err := file.Open()
	if err != nil {
		return "", errors.Wrapf(err, "extracting %s", file.Name)
	}
	defer reader.Close()

	metadataBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.Wrapf(err, "extracting %s", file.Name)
	}
	if err := afero.WriteFile(downloader.Fs, destination, metadataBytes, 0644); err != nil {
		return "", errors.Wrapf(err, "writing %s", destination)
	}

	log.Infow("Extracted metadata", logger.FieldFile, file.Name, logger.FieldPath, destination)
	return packageVersion, nil
}

// Prefers .winmd files; otherwise the first lib/ assembly in name order.
func findMetadataFile(files []*zip.File) *zip.File {
	var assemblies []*zip.File
	for _, file := range files {
		switch strings.ToLower(path.Ext(file.Name)) {
		case ".winmd":
			return file
		case ".dll":
			if strings.HasPrefix(strings.ToLower(file.Name), "lib/") {
				assemblies = append(assemblies, file)
			}
		}
	}
	if len(assemblies) == 0 {
		return nil
	}
	sort.Slice(assemblies, func(i, j int) bool { return assemblies[i].Name < assemblies[j].Name })
	return assemblies[0]
}

func (downloader *Downloader) latestVersion(ctx context.Context, baseAddress string, packageID string) (string, error) {
	versionsResponse, err := downloader.queryGet(ctx, fmt.Sprintf("%s%s/index.json", baseAddress, packageID))
	if err != nil {
		return "", err
	}
	versions, err := parse[map[string][]string](versionsResponse)
	if err != nil {
		return "", errors.Wrap(err, "parsing version list")
	}

	orderedVersions := make([]*version.Version, 0, len(versions["versions"]))
	for _, versionString := range versions["versions"] {
		parsed, err := version.NewVersion(versionString)
		if err != nil {
			return "", errors.Wrapf(err, "error parsing version: %s", versionString)
		}
		orderedVersions = append(orderedVersions, parsed)
	}
	if len(orderedVersions) == 0 {
		return "", errors.Newf("package %s has no published versions", packageID)
	}

	sort.Sort(version.Collection(orderedVersions))
	return orderedVersions[len(orderedVersions)-1].Original(), nil
}

func (downloader *Downloader) getBaseAddress(ctx context.Context) (string, error) {
	indexURL := downloader.IndexURL
	if indexURL == "" {
		indexURL = DefaultNugetIndex
	}

	response, err := downloader.queryGet(ctx, indexURL)
	if err != nil {
		return "", err
	}
	index, err := parse[nugetIndex](response)
	if err != nil {
		return "", errors.Wrap(err, "parsing service index")
	}

	for _, resource := range index.Resources {
		if strings.Contains(resource.Type, "PackageBaseAddress") {
			return resource.Id, nil
		}
	}

	return "", errors.Newf("service index %s has no PackageBaseAddress resource", indexURL)
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

func (downloader *Downloader) queryGet(ctx context.Context, url string) ([]byte, error) {
	client := downloader.Client
	if client == nil {
		client = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating request for %s", url)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Newf("GET %s: unexpected status %s", url, response.Status)
	}

	return io.ReadAll(response.Body)
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}
