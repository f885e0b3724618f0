package services

import (
	"PMRender/internal/models/configs"
	"PMRender/pkg/config"
)

// BuildRenderService wires the fetch, upload, and render services from the
// process configuration. Both the HTTP router and the one-shot job handler
// go through this single assembly path.
func BuildRenderService(cfg *config.Config) (*RenderService, error) {
	fetchService, err := StartFetchService(configs.FetchServiceConfig{
		RequestTimeout: cfg.DownloadTimeout,
	})
	if err != nil {
		return nil, err
	}

	uploadService, err := StartUploadService(configs.UploadServiceConfig{
		Endpoint:       cfg.UploadURL,
		Token:          cfg.UploadToken,
		RequestTimeout: cfg.UploadTimeout,
	})
	if err != nil {
		return nil, err
	}

	return StartRenderService(configs.RenderServiceConfig{
		WorkDir:             cfg.WorkDir,
		ConvertBinary:       cfg.ConvertBinary,
		PresetDir:           cfg.PresetDir,
		TextureDir:          cfg.TextureDir,
		OutputName:          cfg.OutputName,
		MaxConcurrent:       cfg.MaxConcurrent,
		DefaultMesh:         cfg.DefaultMesh,
		DefaultEncoderSpeed: cfg.DefaultEncoderSpeed,
		DefaultTimeout:      cfg.ConvertTimeout,
	}, fetchService, uploadService)
}
