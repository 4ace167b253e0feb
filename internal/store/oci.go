package store

import (
	"fmt"
	"io"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"github.com/ogulcanaydogan/gridtune/internal/hash"
)

const trialsMediaType = types.MediaType("application/vnd.gridtune.trials.v1+json")

// PublishOCI pushes a trial file as a single-layer artifact and returns the
// digest-pinned reference.
func PublishOCI(inPath string, ociRef string) (string, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return "", fmt.Errorf("read trial file: %w", err)
	}
	if _, err := DecodeTrials(raw); err != nil {
		return "", err
	}
	ref, err := name.ParseReference(ociRef, name.WithDefaultRegistry("ghcr.io"))
	if err != nil {
		return "", fmt.Errorf("parse oci ref: %w", err)
	}

	layer := static.NewLayer(raw, trialsMediaType)
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return "", fmt.Errorf("append layer: %w", err)
	}
	img = mutate.MediaType(img, types.OCIManifestSchema1)

	if err := remote.Write(ref, img, remote.WithAuthFromKeychain(authn.DefaultKeychain)); err != nil {
		return "", fmt.Errorf("push oci artifact: %w", err)
	}
	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("compute digest: %w", err)
	}
	return ref.Context().Digest(digest.String()).String(), nil
}

// PullOCI fetches a trial file published by PublishOCI and writes it to outPath.
func PullOCI(ociRef string, outPath string) error {
	ref, err := name.ParseReference(ociRef, name.WithDefaultRegistry("ghcr.io"))
	if err != nil {
		return fmt.Errorf("parse oci ref: %w", err)
	}
	img, err := remote.Image(ref, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return fmt.Errorf("pull oci artifact: %w", err)
	}
	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("read layers: %w", err)
	}
	if len(layers) == 0 {
		return fmt.Errorf("oci artifact has no layers")
	}
	mt, err := layers[0].MediaType()
	if err != nil {
		return fmt.Errorf("read layer media type: %w", err)
	}
	if mt != trialsMediaType {
		return fmt.Errorf("unexpected layer media type %s", mt)
	}

	rc, err := layers[0].Uncompressed()
	if err != nil {
		return fmt.Errorf("read layer payload: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read layer bytes: %w", err)
	}
	want, err := layers[0].Digest()
	if err != nil {
		return fmt.Errorf("read layer digest: %w", err)
	}
	if got := hash.DigestBytes(raw); got != want.String() {
		return fmt.Errorf("layer digest mismatch: got %s, want %s", got, want)
	}
	if _, err := DecodeTrials(raw); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return fmt.Errorf("write pulled trial file: %w", err)
	}
	return nil
}
