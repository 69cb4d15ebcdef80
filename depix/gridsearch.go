package depix

import "fmt"

// GridSearchResult is the winning configuration of a grid search and
// the model trained under it.
type GridSearchResult struct {
	Model *Model

	WindowSize int
	NClusters  int
	NImgTrain  int
	OffsetY    int

	Accuracy       float64
	MeanSimilarity float64
}

// GridSearch trains and evaluates a model for every combination of
// window size, cluster count, training-corpus size, and vertical grid
// offset, returning the configuration with the highest accuracy. Ties
// keep the earlier combination.
func GridSearch(picture PictureParametersGridSearch, training TrainingParametersGridSearch, opts ...Option) (*GridSearchResult, error) {
	if len(picture.WindowSizes) == 0 || len(picture.OffsetsY) == 0 ||
		len(training.NImgTrain) == 0 || len(training.NClusters) == 0 {
		return nil, fmt.Errorf("depix: grid search requires at least one candidate per hyperparameter")
	}

	var best *GridSearchResult
	for _, windowSize := range picture.WindowSizes {
		for _, nClusters := range training.NClusters {
			for _, nImgTrain := range training.NImgTrain {
				for _, offsetY := range picture.OffsetsY {
					pipeline, err := NewPipeline(
						picture.at(windowSize, offsetY),
						TrainingParameters{
							NImgTrain: nImgTrain,
							NImgTest:  training.NImgTest,
							NClusters: nClusters,
						},
						opts...,
					)
					if err != nil {
						return nil, err
					}

					model, err := pipeline.Train()
					if err != nil {
						return nil, err
					}
					accuracy, meanSimilarity, err := pipeline.Evaluate(model)
					if err != nil {
						return nil, err
					}
					pipeline.moduleLog.Printf("window size %d, clusters %d, training images %d, offset y %d: accuracy %.3f, mean similarity %.3f",
						windowSize, nClusters, nImgTrain, offsetY, accuracy, meanSimilarity)

					if best == nil || accuracy > best.Accuracy {
						best = &GridSearchResult{
							Model:          model,
							WindowSize:     windowSize,
							NClusters:      nClusters,
							NImgTrain:      nImgTrain,
							OffsetY:        offsetY,
							Accuracy:       accuracy,
							MeanSimilarity: meanSimilarity,
						}
					}
				}
			}
		}
	}

	best.Model.moduleLog.Printf("best configuration: window size %d, clusters %d, training images %d, offset y %d (accuracy %.3f, mean similarity %.3f)",
		best.WindowSize, best.NClusters, best.NImgTrain, best.OffsetY, best.Accuracy, best.MeanSimilarity)
	return best, nil
}
