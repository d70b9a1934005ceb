package importer

import (
	"context"

	"confimport/internal/domain"
)

// processImages 按名称创建或更新图片。新图片立即绑定到解析器，拓扑图图标可以引用。
func (im *Importer) processImages(ctx context.Context) error {
	policy := im.rules.For(domain.EntityImages)
	images := im.src.Images()
	if len(images) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}
	var creates, updates []*domain.Image
	seen := make(map[string]struct{}, len(images))
	for _, image := range images {
		if _, dup := seen[image.Name]; dup {
			continue
		}
		seen[image.Name] = struct{}{}
		rec := image
		rec.ID = ""
		if id, ok := im.resolver.ImageID(image.Name); ok {
			if policy.UpdateExisting {
				rec.ID = id
				updates = append(updates, &rec)
			}
			continue
		}
		if policy.CreateMissing {
			creates = append(creates, &rec)
		}
	}
	if _, err := apply(ctx, im, KindImages, im.svc.Images, creates, updates); err != nil {
		return err
	}
	for _, rec := range creates {
		im.resolver.BindImage(rec.Name, rec.ID)
	}
	return nil
}
